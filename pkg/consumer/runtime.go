// Package consumer implements the idempotent consumer runtime: the
// execution shape wrapped around every domain handler so that redelivery,
// duplicate publishing by the outbox relay, or broker at-least-once
// semantics can never double-apply an effect.
//
// Per delivery: resume trace context, short-circuit on the seen-cache,
// open a transaction, check the processed-events ledger, run the handler
// on the open transaction, insert the ledger marker, commit, acknowledge.
// Any failure before commit rolls the whole effect back.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acmecorp/orderflow/pkg/tracing"
)

// Outcome is the handler's verdict on a message.
type Outcome int

const (
	// Applied commits the handler's effect and acknowledges the message.
	Applied Outcome = iota
	// Rejected acknowledges without effect: the message can never be
	// processed (malformed payload, references a row that does not
	// exist). Redelivering it would fail the same way forever.
	Rejected
	// Retry refuses the message without requeueing it, which routes it to
	// the dead-letter queue for operator replay. Used for transient
	// failures so a poison message cannot loop hot on the main queue.
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// ErrChannelClosed reports that the broker closed the delivery stream; the
// owning loop should invalidate its connection and resubscribe.
var ErrChannelClosed = errors.New("consumer: delivery channel closed")

// ErrUnavailable reports that no transaction could be opened at all. The
// delivery is left unacknowledged: the broker redelivers it once the
// session is re-established, so a database outage parks messages on the
// queue instead of flushing them to the dead-letter queue.
var ErrUnavailable = errors.New("consumer: database unavailable")

// Message is one delivery as seen by a handler. EventID is the domain
// correlation id (the order id carried in every payload), which is also
// the ledger key.
type Message struct {
	RoutingKey string
	EventID    string
	Body       []byte
	Headers    amqp.Table
}

// Handler applies one message inside the runtime's open transaction. It
// may read and write business rows and append new outbox rows on tx; all
// of it commits atomically with the ledger marker, or not at all.
type Handler interface {
	Handle(ctx context.Context, tx pgx.Tx, msg Message) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tx pgx.Tx, msg Message) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, tx pgx.Tx, msg Message) (Outcome, error) {
	return f(ctx, tx, msg)
}

// DB begins transactions. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Marker is the processed-events ledger surface.
type Marker interface {
	Seen(ctx context.Context, tx pgx.Tx, service, eventID string) (bool, error)
	Mark(ctx context.Context, tx pgx.Tx, service, eventID string) error
}

// Cache is an optional non-authoritative dedup fast path.
type Cache interface {
	Seen(ctx context.Context, service, eventID string) bool
	Remember(ctx context.Context, service, eventID string)
}

// Delivery is the acknowledgement surface of one broker delivery.
// amqp.Delivery satisfies it.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Runtime executes one service's handler idempotently.
type Runtime struct {
	log     *slog.Logger
	service string
	db      DB
	marker  Marker
	cache   Cache
	handler Handler
	tracer  trace.Tracer
}

func NewRuntime(log *slog.Logger, service string, db DB, marker Marker, cache Cache, handler Handler) *Runtime {
	return &Runtime{
		log:     log,
		service: service,
		db:      db,
		marker:  marker,
		cache:   cache,
		handler: handler,
		tracer:  otel.Tracer(service),
	}
}

// Consume processes deliveries until ctx is done or the stream closes.
func (r *Runtime) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrChannelClosed
			}
			msg := Message{
				RoutingKey: d.RoutingKey,
				EventID:    correlationID(d.Body),
				Body:       d.Body,
				Headers:    d.Headers,
			}
			if err := r.Process(ctx, msg, d); err != nil {
				return err
			}
		}
	}
}

// Process runs the idempotent shape for one message. The returned error is
// either ErrUnavailable (delivery deliberately left unacked) or an
// acknowledgement transport failure; everything else resolves into an ack
// or a dead-letter nack.
func (r *Runtime) Process(ctx context.Context, msg Message, d Delivery) error {
	ctx = tracing.ExtractAMQPHeaders(ctx, msg.Headers)
	ctx, span := r.tracer.Start(ctx, "consume "+msg.RoutingKey)
	defer span.End()

	if msg.EventID == "" {
		r.log.Error("message without correlation id dropped", "routing_key", msg.RoutingKey)
		return d.Ack(false)
	}

	if r.cache != nil && r.cache.Seen(ctx, r.service, msg.EventID) {
		r.log.Debug("duplicate skipped via cache", "event_id", msg.EventID)
		return d.Ack(false)
	}

	out, dup, err := r.apply(ctx, msg)
	if errors.Is(err, ErrUnavailable) {
		// Connectivity, not a message problem. Leave the delivery unacked
		// and let the owning session reconnect; the broker redelivers.
		r.log.Error("database unavailable, delivery left unacked", "event_id", msg.EventID, "err", err)
		return err
	}
	switch out {
	case Applied:
		if dup {
			r.log.Info("duplicate skipped via ledger", "event_id", msg.EventID, "routing_key", msg.RoutingKey)
		} else {
			r.log.Info("event applied", "event_id", msg.EventID, "routing_key", msg.RoutingKey)
		}
		if r.cache != nil {
			r.cache.Remember(ctx, r.service, msg.EventID)
		}
		return d.Ack(false)
	case Rejected:
		r.log.Warn("event rejected", "event_id", msg.EventID, "routing_key", msg.RoutingKey, "err", err)
		return d.Ack(false)
	default:
		r.log.Error("event deferred to dead-letter queue", "event_id", msg.EventID, "routing_key", msg.RoutingKey, "err", err)
		return d.Nack(false, false)
	}
}

// apply runs ledger check, handler and marker in one transaction. dup is
// true when the ledger short-circuited and the commit was a no-op.
func (r *Runtime) apply(ctx context.Context, msg Message) (out Outcome, dup bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Retry, false, fmt.Errorf("begin: %w", errors.Join(ErrUnavailable, err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	seen, err := r.marker.Seen(ctx, tx, r.service, msg.EventID)
	if err != nil {
		return Retry, false, err
	}
	if seen {
		if err := tx.Commit(ctx); err != nil {
			return Retry, false, fmt.Errorf("commit no-op: %w", err)
		}
		return Applied, true, nil
	}

	out, herr := r.handler.Handle(ctx, tx, msg)
	if out != Applied {
		return out, false, herr
	}
	if herr != nil {
		// A handler must not report Applied with an error; fail safe.
		return Retry, false, herr
	}

	if err := r.marker.Mark(ctx, tx, r.service, msg.EventID); err != nil {
		return Retry, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Retry, false, fmt.Errorf("commit: %w", err)
	}
	return Applied, false, nil
}

// correlationID pulls the order id every payload carries.
func correlationID(body []byte) string {
	var c struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(body, &c); err != nil {
		return ""
	}
	return c.OrderID
}
