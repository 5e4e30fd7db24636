//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invapp "github.com/acmecorp/orderflow/internal/inventory/application"
	invpg "github.com/acmecorp/orderflow/internal/inventory/infrastructure/postgres"
	"github.com/acmecorp/orderflow/internal/migration"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/migrations"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

func newMigratedPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	env, err := SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	log := slog.New(slog.DiscardHandler)
	mig, err := migration.New(log, migrations.FS, ".", env.PGURL)
	require.NoError(t, err)
	require.NoError(t, mig.Up())
	_ = mig.Close()

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// TestClaimBatchesAreDisjoint opens two competing transactions against
// one outbox backlog and asserts they lock disjoint rows: skip-locked
// claiming is what lets relay replicas run side by side without ever
// publishing a row twice in the same cycle.
func TestClaimBatchesAreDisjoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool := newMigratedPool(t, ctx)
	store := outbox.NewStore(5)

	seed, err := pool.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		payload := map[string]string{"order_id": fmt.Sprintf("o-%d", i)}
		require.NoError(t, store.Append(ctx, seed, orderdomain.EventOrderPlaced, payload))
	}
	require.NoError(t, seed.Commit(ctx))

	tx1, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx1.Rollback(ctx)
	tx2, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)

	batch1, err := store.ClaimBatch(ctx, tx1, 2)
	require.NoError(t, err)
	require.Len(t, batch1, 2, "first claimer takes the oldest rows")

	// tx1 still holds its row locks; tx2 must skip them, not block.
	batch2, err := store.ClaimBatch(ctx, tx2, 2)
	require.NoError(t, err)
	require.Len(t, batch2, 2, "second claimer takes the remaining rows")

	claimed := map[int64]bool{}
	for _, ev := range append(batch1, batch2...) {
		assert.False(t, claimed[ev.ID], "outbox row %d claimed by both transactions", ev.ID)
		claimed[ev.ID] = true
	}
}

// TestConcurrentReservationsSerializeOnStock races two reservations for
// the last unit of one SKU. The row lock taken before the stock check
// forces the transactions to serialize: exactly one order ends reserved,
// the other out_of_stock, and stock never goes negative.
func TestConcurrentReservationsSerializeOnStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool := newMigratedPool(t, ctx)

	_, err := pool.Exec(ctx,
		`INSERT INTO products (sku, name, price, stock_qty) VALUES ('SKU-LAST-UNIT', 'Last Unit', 10.00, 1)`)
	require.NoError(t, err)

	orderIDs := []uuid.UUID{uuid.New(), uuid.New()}
	for i, id := range orderIDs {
		_, err := pool.Exec(ctx,
			`INSERT INTO orders (id, customer_id, email, status, total_amount) VALUES ($1,$2,$3,'placed',10.00)`,
			id, fmt.Sprintf("cust-%d", i), fmt.Sprintf("cust-%d@example.com", i))
		require.NoError(t, err)
	}

	svc := invapp.NewService(slog.New(slog.DiscardHandler))
	ob := outbox.NewStore(5)

	outcomes := make([]consumer.Outcome, len(orderIDs))
	errs := make([]error, len(orderIDs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, id := range orderIDs {
		wg.Add(1)
		go func(i int, orderID string) {
			defer wg.Done()
			<-start

			tx, err := pool.Begin(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			defer tx.Rollback(ctx)

			evt := orderdomain.OrderPlaced{
				OrderID: orderID,
				Items:   []orderdomain.PlacedItem{{SKU: "SKU-LAST-UNIT", Qty: 1}},
			}
			out, err := svc.Reserve(ctx, invpg.NewTxStore(tx, ob), evt)
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = out
			errs[i] = tx.Commit(ctx)
		}(i, id.String())
	}
	close(start)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i], "reservation %d", i)
		assert.Equal(t, consumer.Applied, outcomes[i], "both verdicts commit; one is a refusal")
	}

	statuses := map[string]int{}
	for _, id := range orderIDs {
		var s string
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s))
		statuses[s]++
	}
	assert.Equal(t, 1, statuses["reserved"], "statuses: %v", statuses)
	assert.Equal(t, 1, statuses["out_of_stock"], "statuses: %v", statuses)

	var remaining int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT stock_qty FROM products WHERE sku='SKU-LAST-UNIT'`).Scan(&remaining))
	assert.Zero(t, remaining, "the single unit may be granted once")
}
