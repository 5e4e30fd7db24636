package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/internal/payment/application"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

// TxStore binds one payment attempt to the consumer runtime's open
// transaction.
type TxStore struct {
	tx     pgx.Tx
	outbox *outbox.Store
}

func NewTxStore(tx pgx.Tx, ob *outbox.Store) *TxStore {
	return &TxStore{tx: tx, outbox: ob}
}

func (s *TxStore) OrderForPayment(ctx context.Context, orderID string) (orderdomain.OrderStatus, decimal.Decimal, bool, error) {
	var status orderdomain.OrderStatus
	var amount decimal.Decimal
	err := s.tx.QueryRow(ctx,
		`SELECT status, total_amount FROM orders WHERE id=$1`, orderID).
		Scan(&status, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", decimal.Zero, false, nil
	}
	if err != nil {
		return "", decimal.Zero, false, fmt.Errorf("select order %s: %w", orderID, err)
	}
	return status, amount, true, nil
}

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
