package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/acmecorp/orderflow/internal/inventory/application"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

// TxStore binds one reservation attempt to the consumer runtime's open
// transaction. FOR UPDATE row locks on products serialize concurrent
// reservations per SKU and are held until that transaction ends.
type TxStore struct {
	tx     pgx.Tx
	outbox *outbox.Store
}

func NewTxStore(tx pgx.Tx, ob *outbox.Store) *TxStore {
	return &TxStore{tx: tx, outbox: ob}
}

func (s *TxStore) LockStock(ctx context.Context, sku string) (int, bool, error) {
	var qty int
	err := s.tx.QueryRow(ctx,
		`SELECT stock_qty FROM products WHERE sku=$1 FOR UPDATE`, sku).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lock stock %s: %w", sku, err)
	}
	return qty, true, nil
}

func (s *TxStore) DecrementStock(ctx context.Context, sku string, qty int) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE products SET stock_qty = stock_qty - $2 WHERE sku=$1`, sku, qty)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", sku, err)
	}
	return nil
}

// SetOrderStatus moves the order between two named states. The WHERE
// clause carries the expected source state, so a row in any other state
// (or a missing row) refuses the transition.
func (s *TxStore) SetOrderStatus(ctx context.Context, orderID string, from, to orderdomain.OrderStatus) error {
	ct, err := s.tx.Exec(ctx,
		`UPDATE orders SET status=$3 WHERE id=$1 AND status=$2`, orderID, from, to)
	if err != nil {
		return fmt.Errorf("set order %s status: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s not in status %s: %w", orderID, from, application.ErrStatusConflict)
	}
	return nil
}

func (s *TxStore) AppendEvent(ctx context.Context, eventType string, payload any) error {
	return s.outbox.Append(ctx, s.tx, eventType, payload)
}
