// Package worker runs one consumer process: it owns the broker
// connection, declares the service's queues, merges their deliveries and
// feeds them to the idempotent runtime. Broker loss is handled here, by
// invalidating the connection and re-acquiring it with backoff, so
// handlers never see connectivity concerns.
package worker

import (
	"context"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/acmecorp/orderflow/pkg/broker"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/resilience"
)

type Worker struct {
	log      *slog.Logger
	conn     *resilience.Conn[*amqp.Connection]
	exchange string
	prefetch int
	// queues maps each subscribed routing key to its durable queue.
	queues  map[string]string
	runtime *consumer.Runtime
}

func New(log *slog.Logger, rabbitURL, exchange string, prefetch int, queues map[string]string, rt *consumer.Runtime) *Worker {
	conn := resilience.New(log, "rabbitmq",
		func(ctx context.Context) (*amqp.Connection, error) {
			return broker.Dial(ctx, rabbitURL)
		},
		func(c *amqp.Connection) error { return c.Close() })
	return &Worker{
		log:      log,
		conn:     conn,
		exchange: exchange,
		prefetch: prefetch,
		queues:   queues,
		runtime:  rt,
	}
}

// Run consumes until ctx is done. Each pass acquires a connection, runs
// one consume session on it, and on any session failure tears the
// connection down and starts over.
func (w *Worker) Run(ctx context.Context) error {
	defer w.conn.Invalidate()

	for {
		conn, err := w.conn.Acquire(ctx)
		if err != nil {
			return ctx.Err()
		}
		if err := w.session(ctx, conn); err != nil {
			w.log.Warn("consume session ended, reconnecting", "err", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		w.conn.Invalidate()
	}
}

// session opens a channel, subscribes every queue and pumps the merged
// delivery stream through the runtime. Any source stream closing ends the
// whole session; partial subscriptions are never left running.
func (w *Worker) session(ctx context.Context, conn *amqp.Connection) error {
	ch, err := broker.Channel(conn, w.exchange)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan amqp.Delivery)
	var wg sync.WaitGroup
	for key, queue := range w.queues {
		if err := broker.DeclareQueue(ch, w.exchange, queue, key); err != nil {
			return err
		}
		deliveries, err := broker.Consume(ch, queue, w.prefetch)
		if err != nil {
			return err
		}
		w.log.Info("consuming", "queue", queue, "routing_key", key)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				select {
				case merged <- d:
				case <-sctx.Done():
					return
				}
			}
			// Source closed underneath us: bring the session down so the
			// owner reconnects everything at once.
			cancel()
		}()
	}

	err = w.runtime.Consume(sctx, merged)
	cancel()
	wg.Wait()
	if err == nil && ctx.Err() == nil {
		return consumer.ErrChannelClosed
	}
	return err
}
