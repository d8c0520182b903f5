package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"RocketShoes/internal/cart"
)

const (
	ExchangeName = "cart.notifications"
	ExchangeType = "topic"

	publishTimeout = 2 * time.Second
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications as JSON on a topic exchange with routing
// key cart.<kind>. Publish errors are logged and dropped.
type AMQPSink struct {
	ch  publisher
	log *zap.Logger
}

func NewAMQPSink(ch *amqp.Channel, log *zap.Logger) *AMQPSink {
	return newAMQPSink(ch, log)
}

func newAMQPSink(ch publisher, log *zap.Logger) *AMQPSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPSink{ch: ch, log: log}
}

func RoutingKey(k cart.Kind) string {
	return "cart." + strings.ToLower(string(k))
}

func (s *AMQPSink) Notify(ctx context.Context, n cart.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.log.Error("marshal notification failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = s.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey(n.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   n.ID,
			Timestamp:   n.At,
			Body:        body,
		},
	)
	if err != nil {
		s.log.Warn("publish notification failed",
			zap.String("notification_id", n.ID), zap.String("kind", string(n.Kind)), zap.Error(err))
	}
}

// DialAMQP connects and declares the notification exchange, retrying the
// dial while the broker starts up.
func DialAMQP(url string, attempts int, log *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < max(attempts, 1); i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("rabbitmq dial failed", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
