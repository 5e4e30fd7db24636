// Package domain holds the events the payment service announces.
package domain

// Routing keys for payment outcomes.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

// ReasonCardDeclined mirrors the gateway's decline response.
const ReasonCardDeclined = "card_declined"

// PaymentCompleted is the payment.completed payload, version 1.
type PaymentCompleted struct {
	OrderID string `json:"order_id"`
}

// PaymentFailed is the payment.failed payload, version 1.
type PaymentFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
