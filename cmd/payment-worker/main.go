package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acmecorp/orderflow/internal/config"
	invdomain "github.com/acmecorp/orderflow/internal/inventory/domain"
	"github.com/acmecorp/orderflow/internal/payment/application"
	payamqp "github.com/acmecorp/orderflow/internal/payment/infrastructure/amqp"
	"github.com/acmecorp/orderflow/internal/payment/infrastructure/gateway"
	"github.com/acmecorp/orderflow/internal/worker"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/ledger"
	"github.com/acmecorp/orderflow/pkg/logging"
	"github.com/acmecorp/orderflow/pkg/outbox"
	"github.com/acmecorp/orderflow/pkg/postgres"
	"github.com/acmecorp/orderflow/pkg/shutdown"
	"github.com/acmecorp/orderflow/pkg/tracing"
)

const serviceName = "payment-service"

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

	ob := outbox.NewStore(cfg.MaxAttempts)
	svc := application.NewService(log, gateway.NewSimulator(cfg.PaymentSuccessRate))
	handler := payamqp.NewHandler(log, svc, ob)
	rt := consumer.NewRuntime(log, serviceName, pool, ledger.New(), cache, handler)

	queues := map[string]string{invdomain.EventInventoryReserved: payamqp.Queue}
	w := worker.New(log, cfg.RabbitURL, cfg.Exchange, cfg.Prefetch, queues, rt)
	if err := w.Run(ctx); err != nil {
		log.Error("worker failed", "err", err)
		os.Exit(1)
	}
	log.Info("payment-worker shutdown")
}
