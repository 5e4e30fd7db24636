package outbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.tx = &fakeTx{}
	return db.tx, nil
}

type fakeStore struct {
	batch     []Event
	published []int64
	failed    []int64
}

func (s *fakeStore) ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error) {
	if len(s.batch) > limit {
		return s.batch[:limit], nil
	}
	return s.batch, nil
}

func (s *fakeStore) MarkPublished(ctx context.Context, tx pgx.Tx, id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *fakeStore) RecordFailure(ctx context.Context, tx pgx.Tx, id int64, cause string) error {
	s.failed = append(s.failed, id)
	return nil
}

type fakePublisher struct {
	failKeys map[string]error
	sent     []string
	headers  []map[string]any
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, body []byte, headers map[string]any) error {
	if err := p.failKeys[routingKey]; err != nil {
		return err
	}
	p.sent = append(p.sent, routingKey)
	p.headers = append(p.headers, headers)
	return nil
}

func event(id int64, eventType string) Event {
	return Event{ID: id, EventType: eventType, EventID: uuid.New(), Version: CurrentVersion, Payload: []byte(`{}`)}
}

func newRelay(db DB, store RelayStore, pub Publisher) *Relay {
	return NewRelay(slog.New(slog.DiscardHandler), db, store, pub, time.Millisecond, 10)
}

func TestCyclePublishesAndMarksEachClaimedRow(t *testing.T) {
	db := &fakeDB{}
	store := &fakeStore{batch: []Event{event(1, "order.placed"), event(2, "inventory.reserved")}}
	pub := &fakePublisher{}

	err := newRelay(db, store, pub).cycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"order.placed", "inventory.reserved"}, pub.sent)
	assert.Equal(t, []int64{1, 2}, store.published)
	assert.True(t, db.tx.committed)
}

func TestCycleCarriesEventIDAndVersionHeaders(t *testing.T) {
	db := &fakeDB{}
	ev := event(7, "payment.completed")
	store := &fakeStore{batch: []Event{ev}}
	pub := &fakePublisher{}

	require.NoError(t, newRelay(db, store, pub).cycle(context.Background()))

	require.Len(t, pub.headers, 1)
	assert.Equal(t, ev.EventID.String(), pub.headers[0][HeaderEventID])
	assert.Equal(t, "1", pub.headers[0][HeaderVersion])
}

func TestCycleEmptyBatchCommitsNoop(t *testing.T) {
	db := &fakeDB{}
	store := &fakeStore{}
	pub := &fakePublisher{}

	require.NoError(t, newRelay(db, store, pub).cycle(context.Background()))
	assert.True(t, db.tx.committed)
	assert.Empty(t, pub.sent)
}

func TestCycleRecordsFailureAndContinuesBatch(t *testing.T) {
	db := &fakeDB{}
	store := &fakeStore{batch: []Event{event(1, "order.placed"), event(2, "payment.failed")}}
	pub := &fakePublisher{failKeys: map[string]error{"order.placed": errors.New("basic.publish refused")}}

	err := newRelay(db, store, pub).cycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, store.failed)
	assert.Equal(t, []int64{2}, store.published)
	assert.True(t, db.tx.committed, "per-row publish failures must not abort the batch")
}

func TestCycleAbortsBatchWhenBrokerConnectionDies(t *testing.T) {
	db := &fakeDB{}
	store := &fakeStore{batch: []Event{event(1, "order.placed"), event(2, "inventory.reserved")}}
	pub := &fakePublisher{failKeys: map[string]error{"order.placed": amqp.ErrClosed}}

	err := newRelay(db, store, pub).cycle(context.Background())
	require.ErrorIs(t, err, ErrBrokerGone)

	// Rollback reverts every claimed row to NEW so the whole batch is
	// reclaimed after reconnect; nothing may be marked.
	assert.True(t, db.tx.rolledBack)
	assert.Empty(t, store.published)
	assert.Empty(t, store.failed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db := &fakeDB{}
	store := &fakeStore{}
	pub := &fakePublisher{}
	relay := newRelay(db, store, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
