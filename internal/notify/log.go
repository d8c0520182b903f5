package notify

import (
	"context"

	"go.uber.org/zap"

	"RocketShoes/internal/cart"
)

// LogSink writes every notification to the log at warn level.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Notify(_ context.Context, n cart.Notification) {
	if s.Log == nil {
		return
	}
	s.Log.Warn(n.Message,
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Int("product_id", n.ProductID),
	)
}
