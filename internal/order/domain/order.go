// Package domain holds the order aggregate and the lifecycle state
// machine every downstream service advances.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is one state of the order lifecycle.
type OrderStatus string

const (
	StatusPlaced        OrderStatus = "placed"
	StatusReserved      OrderStatus = "reserved"
	StatusOutOfStock    OrderStatus = "out_of_stock"
	StatusPaid          OrderStatus = "paid"
	StatusPaymentFailed OrderStatus = "payment_failed"
)

// transitions is the full state machine: placed -> {reserved,
// out_of_stock}; reserved -> {paid, payment_failed}. Everything else is
// terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:   {StatusReserved, StatusOutOfStock},
	StatusReserved: {StatusPaid, StatusPaymentFailed},
}

// CanTransition reports whether moving from s to next is defined.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s. Handlers do not act
// on terminality directly; the processed-events ledger is what shields a
// terminal order from late deliveries.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Order is the intake service's aggregate. Downstream services touch only
// the status and read the contact fields; they never own the row.
type Order struct {
	ID          uuid.UUID
	CustomerID  string
	Email       string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	CreatedAt   time.Time
}

// OrderItem is one line of an order with the unit price captured at
// placement time.
type OrderItem struct {
	SKU       string
	Qty       int
	UnitPrice decimal.Decimal
}
