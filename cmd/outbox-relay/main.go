package main

import (
	"context"
	"errors"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/acmecorp/orderflow/internal/config"
	"github.com/acmecorp/orderflow/pkg/broker"
	"github.com/acmecorp/orderflow/pkg/logging"
	"github.com/acmecorp/orderflow/pkg/outbox"
	"github.com/acmecorp/orderflow/pkg/postgres"
	"github.com/acmecorp/orderflow/pkg/resilience"
	"github.com/acmecorp/orderflow/pkg/shutdown"
	"github.com/acmecorp/orderflow/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("outbox-relay", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New("outbox-relay", cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, "outbox-relay", cfg.OTelEndpoint)
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

	store := outbox.NewStore(cfg.MaxAttempts)
	rabbit := resilience.New(log, "rabbitmq",
		func(ctx context.Context) (*amqp.Connection, error) {
			return broker.Dial(ctx, cfg.RabbitURL)
		},
		func(c *amqp.Connection) error { return c.Close() })
	defer rabbit.Invalidate()

	for ctx.Err() == nil {
		conn, err := rabbit.Acquire(ctx)
		if err != nil {
			break
		}
		ch, err := broker.Channel(conn, cfg.Exchange)
		if err != nil {
			log.Warn("channel open failed, reconnecting", "err", err)
			rabbit.Invalidate()
			continue
		}

		pub := broker.NewPublisher(ch, cfg.Exchange)
		relay := outbox.NewRelay(log, pool, store, pub, cfg.PollInterval, cfg.BatchSize)
		err = relay.Run(ctx)
		_ = ch.Close()
		if err == nil {
			continue
		}
		log.Warn("relay stopped", "err", err)
		if errors.Is(err, outbox.ErrBrokerGone) {
			rabbit.Invalidate()
		}
	}
	log.Info("outbox-relay shutdown")
}
