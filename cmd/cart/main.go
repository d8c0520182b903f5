package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"RocketShoes/internal/cart"
	"RocketShoes/internal/kv"
	"RocketShoes/internal/notify"
	"RocketShoes/internal/storefront"
	"RocketShoes/pkg/kit"
)

func main() {
	service := "cart"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), service, log); err != nil {
		log.Fatal("cart stopped", zap.Error(err))
	}
}

func run(ctx context.Context, service string, log *zap.Logger) error {
	port := kit.Getenv("PORT", "8080")
	catalogURL := kit.Getenv("CATALOG_URL", "http://localhost:3333")

	shutdownTracing, err := kit.InitTracing(ctx, service, kit.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	persist, closePersist, err := openPersister(log)
	if err != nil {
		return err
	}
	defer closePersist()

	recorder := notify.NewRecorder(kit.GetenvInt("NOTIFICATION_HISTORY", 100))
	sinks := notify.Fanout{notify.LogSink{Log: log}, recorder}

	if url := kit.Getenv("AMQP_URL", ""); url != "" {
		conn, ch, err := notify.DialAMQP(url, kit.GetenvInt("AMQP_DIAL_ATTEMPTS", 5), log)
		if err != nil {
			return err
		}
		defer func() {
			_ = ch.Close()
			_ = conn.Close()
		}()
		sinks = append(sinks, notify.NewAMQPSink(ch, log))
		log.Info("publishing notifications", zap.String("exchange", notify.ExchangeName))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	api := storefront.NewClient(catalogURL)
	store, err := cart.Open(ctx, cart.Deps{
		Stock:    api,
		Catalog:  storefront.NewCachedCatalog(api, kit.GetenvDuration("PRODUCT_CACHE_TTL", storefront.DefaultProductTTL)),
		Persist:  persist,
		Notifier: sinks,
		Log:      log,
		Metrics:  cart.NewMetrics(reg),
		Key:      kit.Getenv("CART_KEY", cart.StorageKey),
	})
	if err != nil {
		return err
	}

	h, err := cart.NewHandler(
		&cart.Server{Store: store, Notifications: recorder, Log: log},
		cart.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: kit.GetenvBool("METRICS_ENABLED", true),
			MetricsToken:   kit.Getenv("METRICS_TOKEN", ""),
			CatalogURL:     catalogURL,
		},
	)
	if err != nil {
		return err
	}

	return kit.RunHTTPServer(ctx, ":"+port, h, log)
}

func openPersister(log *zap.Logger) (cart.Persister, func(), error) {
	switch kind := kit.Getenv("CART_STORE", "file"); kind {
	case "memory":
		log.Warn("cart kept in memory only")
		return kv.NewMemStore(), func() {}, nil
	case "file":
		fs, err := kv.NewFileStore(kit.Getenv("CART_DIR", "data"))
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "redis":
		client := kv.NewRedisClient(kit.Getenv("REDIS_ADDR", "localhost:6379"))
		return kv.NewRedisStore(client, kit.Getenv("REDIS_PREFIX", "rocketshoes:")), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown CART_STORE %q", kind)
	}
}
