package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

// ErrNotFound reports an order id with no row.
var ErrNotFound = errors.New("order not found")

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	outbox *outbox.Store
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ob *outbox.Store) *Repository {
	return &Repository{log: log, pool: pool, outbox: ob}
}

// SaveWithOutbox commits the order, its items and the order.placed outbox
// row in one transaction. Losing the announcement relative to the order
// is impossible: either both exist or neither does.
func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, evt domain.OrderPlaced) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, email, status, total_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.CustomerID, o.Email, o.Status, o.TotalAmount, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, sku, qty, unit_price) VALUES ($1,$2,$3,$4)`,
			o.ID, item.SKU, item.Qty, item.UnitPrice)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	if err := r.outbox.Append(ctx, tx, domain.EventOrderPlaced, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get loads one order with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, email, status, total_amount, created_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.Email, &o.Status, &o.TotalAmount, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT sku, qty, unit_price FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.SKU, &it.Qty, &it.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// Catalog answers price lookups against the products table.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) Prices(ctx context.Context, skus []string) (map[string]decimal.Decimal, error) {
	rows, err := c.pool.Query(ctx, `SELECT sku, price FROM products WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, fmt.Errorf("select prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]decimal.Decimal, len(skus))
	for rows.Next() {
		var sku string
		var price decimal.Decimal
		if err := rows.Scan(&sku, &price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices[sku] = price
	}
	return prices, rows.Err()
}
