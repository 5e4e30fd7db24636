package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acmecorp/orderflow/internal/config"
	"github.com/acmecorp/orderflow/internal/notification/application"
	notifamqp "github.com/acmecorp/orderflow/internal/notification/infrastructure/amqp"
	"github.com/acmecorp/orderflow/internal/notification/infrastructure/email"
	"github.com/acmecorp/orderflow/internal/worker"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/ledger"
	"github.com/acmecorp/orderflow/pkg/logging"
	"github.com/acmecorp/orderflow/pkg/postgres"
	"github.com/acmecorp/orderflow/pkg/shutdown"
	"github.com/acmecorp/orderflow/pkg/tracing"
)

const serviceName = "notification-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(serviceName, "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(serviceName, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, serviceName, cfg.OTelEndpoint)
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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	cache := ledger.NewSeenCache(rdb, 24*time.Hour)

	svc := application.NewService(log, email.NewLogNotifier(log))
	handler := notifamqp.NewHandler(log, svc)
	rt := consumer.NewRuntime(log, serviceName, pool, ledger.New(), cache, handler)

	w := worker.New(log, cfg.RabbitURL, cfg.Exchange, cfg.Prefetch, notifamqp.Queues, rt)
	if err := w.Run(ctx); err != nil {
		log.Error("worker failed", "err", err)
		os.Exit(1)
	}
	log.Info("notification-worker shutdown")
}
