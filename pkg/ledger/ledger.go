// Package ledger records which domain events each service has already
// applied. The processed_events table is the source of truth: the marker
// is inserted in the same transaction as the handler's business mutation,
// so an effect and its marker commit or roll back together.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Ledger reads and writes (service_name, event_id) markers. The event id
// is the domain correlation id carried in the payload (the order id), not
// the outbox row id: however many times an event is republished, the
// marker key is the same.
type Ledger struct{}

func New() *Ledger {
	return &Ledger{}
}

// Seen reports whether service has already applied the event.
func (l *Ledger) Seen(ctx context.Context, tx pgx.Tx, service, eventID string) (bool, error) {
	var one int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM processed_events WHERE service_name=$1 AND event_id=$2`,
		service, eventID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger seen %s/%s: %w", service, eventID, err)
	}
	return true, nil
}

// Mark inserts the marker. ON CONFLICT DO NOTHING keeps the insert safe
// when two deliveries of the same event race past the Seen check; the
// composite primary key still guarantees at most one wins the commit.
func (l *Ledger) Mark(ctx context.Context, tx pgx.Tx, service, eventID string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO processed_events (service_name, event_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		service, eventID)
	if err != nil {
		return fmt.Errorf("ledger mark %s/%s: %w", service, eventID, err)
	}
	return nil
}
