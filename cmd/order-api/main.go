package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/acmecorp/orderflow/internal/config"
	"github.com/acmecorp/orderflow/internal/migration"
	"github.com/acmecorp/orderflow/internal/order/application"
	orderhttp "github.com/acmecorp/orderflow/internal/order/infrastructure/http"
	orderpg "github.com/acmecorp/orderflow/internal/order/infrastructure/postgres"
	"github.com/acmecorp/orderflow/migrations"
	"github.com/acmecorp/orderflow/pkg/logging"
	"github.com/acmecorp/orderflow/pkg/outbox"
	"github.com/acmecorp/orderflow/pkg/postgres"
	"github.com/acmecorp/orderflow/pkg/shutdown"
	"github.com/acmecorp/orderflow/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("order-api", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New("order-api", cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, "order-api", cfg.OTelEndpoint)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = stopTracing(context.Background()) }()

	pool, err := postgres.Connect(ctx, log, cfg.DatabaseURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The API owns the schema; workers assume it is in place.
	mig, err := migration.New(log, migrations.FS, ".", cfg.DatabaseURL)
	if err != nil {
		log.Error("migrator init failed", "err", err)
		os.Exit(1)
	}
	if err := mig.Up(); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	_ = mig.Close()

	ob := outbox.NewStore(cfg.MaxAttempts)
	repo := orderpg.NewRepository(log, pool, ob)
	catalog := orderpg.NewCatalog(pool)
	svc := application.NewService(repo, catalog)
	handler := orderhttp.NewHandler(log, svc)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("order-api shutdown")
}
