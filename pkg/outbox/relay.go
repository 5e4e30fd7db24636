package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acmecorp/orderflow/pkg/tracing"
)

// ErrBrokerGone reports that the relay's broker handle is unusable; the
// owner should invalidate it and re-acquire before resuming.
var ErrBrokerGone = errors.New("outbox relay: broker connection lost")

// DB begins transactions. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RelayStore is the claim/mark surface the relay drives.
type RelayStore interface {
	ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id int64) error
	RecordFailure(ctx context.Context, tx pgx.Tx, id int64, cause string) error
}

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]any) error
}

// Relay polls the outbox and drains NEW rows to the broker. Multiple
// replicas may run concurrently; SKIP LOCKED claims keep their batches
// disjoint. Claim, publishes and status updates share one transaction per
// batch, so a crash mid-batch reverts every row to NEW and the batch is
// republished later. Duplicate delivery is the accepted cost; consumers
// deduplicate.
type Relay struct {
	log      *slog.Logger
	db       DB
	store    RelayStore
	pub      Publisher
	interval time.Duration
	limit    int
	tracer   trace.Tracer
}

func NewRelay(log *slog.Logger, db DB, store RelayStore, pub Publisher, interval time.Duration, limit int) *Relay {
	return &Relay{
		log:      log,
		db:       db,
		store:    store,
		pub:      pub,
		interval: interval,
		limit:    limit,
		tracer:   otel.Tracer("outbox-relay"),
	}
}

// Run polls until ctx is done. It returns ErrBrokerGone when the broker
// handle died mid-cycle; any other error is a database-level failure the
// owner may also treat as a reconnect trigger.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping")
			return nil
		case <-t.C:
			if err := r.cycle(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) cycle(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin relay batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	events, err := r.store.ClaimBatch(ctx, tx, r.limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return tx.Commit(ctx)
	}

	ctx, span := r.tracer.Start(ctx, "publish outbox batch")
	defer span.End()

	published := 0
	for _, ev := range events {
		headers := amqp.Table{
			HeaderEventID: ev.EventID.String(),
			HeaderVersion: strconv.Itoa(ev.Version),
		}
		tracing.InjectAMQPHeaders(ctx, headers)
		if perr := r.pub.Publish(ctx, ev.EventType, ev.Payload, headers); perr != nil {
			if errors.Is(perr, amqp.ErrClosed) {
				// Channel or connection gone: abort the batch so every
				// claimed row reverts to NEW, then have the owner redial.
				return errors.Join(ErrBrokerGone, perr)
			}
			r.log.Error("publish failed", "outbox_id", ev.ID, "type", ev.EventType, "err", perr)
			if serr := r.store.RecordFailure(ctx, tx, ev.ID, perr.Error()); serr != nil {
				return serr
			}
			continue
		}
		if serr := r.store.MarkPublished(ctx, tx, ev.ID); serr != nil {
			return serr
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit relay batch: %w", err)
	}
	r.log.Info("relay batch done", "claimed", len(events), "published", published)
	return nil
}
