package application

import (
	"context"
	"errors"

	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
)

// ErrStatusConflict reports that an order was not in the status a
// transition expects. With the ledger filtering duplicates, hitting it
// means the event contradicts the stored state machine.
var ErrStatusConflict = errors.New("order status conflict")

// ReservationStore is the transaction-scoped storage surface of one
// reservation attempt. Implementations bind all operations to the single
// transaction the consumer runtime opened, so locks, decrements, the
// status change and the outbox append commit or roll back together.
type ReservationStore interface {
	// LockStock takes a row lock on the product and returns the quantity
	// on hand. ok is false when the SKU does not exist.
	LockStock(ctx context.Context, sku string) (qty int, ok bool, err error)
	DecrementStock(ctx context.Context, sku string, qty int) error
	SetOrderStatus(ctx context.Context, orderID string, from, to orderdomain.OrderStatus) error
	AppendEvent(ctx context.Context, eventType string, payload any) error
}
