package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"RocketShoes/internal/catalog"
	"RocketShoes/pkg/kit"
)

func main() {
	adminToken := flag.Bool("admin-token", false, "print an admin JWT for ADMIN_JWT_SECRET and exit")
	ttl := flag.Duration("ttl", 24*time.Hour, "admin token lifetime")
	flag.Parse()

	service := "catalog"
	secret := kit.Getenv("ADMIN_JWT_SECRET", "")

	if *adminToken {
		if secret == "" {
			fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
			os.Exit(2)
		}
		tok, err := catalog.NewTokenMaker(secret).New("admin", catalog.RoleAdmin, *ttl)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), service, secret, log); err != nil {
		log.Fatal("catalog stopped", zap.Error(err))
	}
}

func run(ctx context.Context, service, secret string, log *zap.Logger) error {
	port := kit.Getenv("PORT", "3333")

	shutdownTracing, err := kit.InitTracing(ctx, service, kit.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	s := &catalog.Server{Store: store, Log: log}
	if secret != "" {
		s.Admin = catalog.NewTokenMaker(secret)
	} else {
		log.Info("ADMIN_JWT_SECRET not set; stock updates disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: kit.GetenvBool("METRICS_ENABLED", true),
		MetricsToken:   kit.Getenv("METRICS_TOKEN", ""),
	})

	return kit.RunHTTPServer(ctx, ":"+port, h, log)
}

func openStore(ctx context.Context, log *zap.Logger) (catalog.Store, func(), error) {
	dsn := kit.Getenv("DATABASE_URL", "")
	if dsn == "" {
		log.Info("using in-memory catalog")
		return catalog.NewMemStore(), func() {}, nil
	}

	db, err := catalog.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}

	ps := catalog.NewPostgresStore(db)
	if err := ps.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("using postgres catalog")
	return ps, func() { _ = db.Close() }, nil
}
