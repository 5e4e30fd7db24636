package domain

import "github.com/shopspring/decimal"

// EventOrderPlaced announces a freshly accepted order; the inventory
// service consumes it. The constant doubles as the routing key.
const EventOrderPlaced = "order.placed"

// PlacedItem is one reserved-quantity request inside OrderPlaced.
type PlacedItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// OrderPlaced is the order.placed payload, version 1.
type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Email       string          `json:"email"`
	Items       []PlacedItem    `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
