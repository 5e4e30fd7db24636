package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxStore resolves contact addresses within the consumer runtime's
// transaction.
type TxStore struct {
	tx pgx.Tx
}

func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

func (s *TxStore) Email(ctx context.Context, orderID string) (string, bool, error) {
	var email string
	err := s.tx.QueryRow(ctx,
		`SELECT email FROM orders WHERE id = $1`, orderID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select customer email: %w", err)
	}
	return email, true, nil
}
