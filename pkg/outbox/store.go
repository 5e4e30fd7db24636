package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CurrentVersion tags the payload schema written by this build.
const CurrentVersion = 1

// Store owns SQL access to the event_outbox table. All methods run on a
// caller-supplied transaction: producers append inside their business
// transaction; the relay claims and marks inside one transaction per
// batch so a crash rolls every claimed row back to NEW.
type Store struct {
	maxAttempts int
}

func NewStore(maxAttempts int) *Store {
	return &Store{maxAttempts: maxAttempts}
}

// Append inserts a NEW row carrying payload serialized as JSON.
func (s *Store) Append(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO event_outbox (event_type, event_id, version, payload, status)
		VALUES ($1, $2, $3, $4, 'NEW')`,
		eventType, uuid.New(), CurrentVersion, body)
	if err != nil {
		return fmt.Errorf("append outbox %s: %w", eventType, err)
	}
	return nil
}

// ClaimBatch locks up to limit publishable rows, oldest first. SKIP LOCKED
// lets concurrent relay replicas claim disjoint batches without blocking
// each other; the locks drop when tx commits or aborts.
func (s *Store) ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, event_id, version, payload, attempts
		FROM event_outbox
		WHERE status = 'NEW' AND attempts < $1
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $2`,
		s.maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev := Event{Status: StatusNew}
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.EventID, &ev.Version, &ev.Payload, &ev.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return events, nil
}

// MarkPublished transitions a claimed row NEW -> PUBLISHED.
func (s *Store) MarkPublished(ctx context.Context, tx pgx.Tx, id int64) error {
	ct, err := tx.Exec(ctx, `
		UPDATE event_outbox SET status='PUBLISHED', published_at=now()
		WHERE id=$1 AND status='NEW'`, id)
	if err != nil {
		return fmt.Errorf("mark published id=%d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("mark published id=%d: row not claimable", id)
	}
	return nil
}

// RecordFailure bumps the attempt counter and records the cause. The row
// stays NEW for retry until the cap is reached, then turns FAILED.
func (s *Store) RecordFailure(ctx context.Context, tx pgx.Tx, id int64, cause string) error {
	_, err := tx.Exec(ctx, `
		UPDATE event_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'FAILED' ELSE status END
		WHERE id = $1`,
		id, cause, s.maxAttempts)
	if err != nil {
		return fmt.Errorf("record failure id=%d: %w", id, err)
	}
	return nil
}
