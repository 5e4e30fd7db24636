package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
)

var (
	// ErrDeclined is the gateway's decline verdict: a valid business
	// outcome, persisted as payment_failed rather than retried.
	ErrDeclined = errors.New("payment declined")
	// ErrStatusConflict reports an order outside the state the payment
	// transition expects.
	ErrStatusConflict = errors.New("order status conflict")
)

// PaymentStore is the transaction-scoped storage surface of one payment
// attempt.
type PaymentStore interface {
	// OrderForPayment returns the order's status and total. ok is false
	// when the order does not exist.
	OrderForPayment(ctx context.Context, orderID string) (status orderdomain.OrderStatus, amount decimal.Decimal, ok bool, err error)
	SetOrderStatus(ctx context.Context, orderID string, from, to orderdomain.OrderStatus) error
	AppendEvent(ctx context.Context, eventType string, payload any) error
}

// Gateway charges a customer. The production implementation would call a
// payment provider; the shipped one simulates it with a configurable
// success probability.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal) error
}
