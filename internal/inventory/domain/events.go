// Package domain holds the events the inventory service announces.
package domain

// Routing keys for reservation outcomes.
const (
	EventInventoryReserved = "inventory.reserved"
	EventOrderOutOfStock   = "order.out_of_stock"
)

// ReasonInsufficientStock is the only out-of-stock cause today.
const ReasonInsufficientStock = "insufficient_stock"

// InventoryReserved is the inventory.reserved payload, version 1.
type InventoryReserved struct {
	OrderID string `json:"order_id"`
}

// OrderOutOfStock is the order.out_of_stock payload, version 1.
type OrderOutOfStock struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
