package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acmecorp/orderflow/internal/inventory/domain"
	paydomain "github.com/acmecorp/orderflow/internal/payment/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
)

// Service is the terminal stage of the pipeline: it notifies the
// customer about the order's final state. It writes no outbox events.
type Service struct {
	log      *slog.Logger
	notifier Notifier
}

func NewService(log *slog.Logger, notifier Notifier) *Service {
	return &Service{log: log, notifier: notifier}
}

// Notify looks up the order's contact address and sends the message
// matching the event type. A missing order is a permanent condition,
// not a transient one, so it rejects rather than requeues. Send
// failures requeue; the whole delivery replays, which may re-send an
// email that already went out. That is the at-least-once trade-off.
func (s *Service) Notify(ctx context.Context, store ContactStore, eventType, orderID string) (consumer.Outcome, error) {
	subject, body, ok := compose(eventType, orderID)
	if !ok {
		return consumer.Rejected, fmt.Errorf("no notification template for %q", eventType)
	}

	email, found, err := store.Email(ctx, orderID)
	if err != nil {
		return consumer.Retry, fmt.Errorf("lookup contact for order %s: %w", orderID, err)
	}
	if !found {
		return consumer.Rejected, fmt.Errorf("order %s not found", orderID)
	}

	if err := s.notifier.Send(ctx, email, subject, body); err != nil {
		return consumer.Retry, fmt.Errorf("send %q to %s: %w", subject, email, err)
	}

	s.log.Info("notification sent",
		slog.String("order_id", orderID),
		slog.String("event_type", eventType),
		slog.String("email", email))
	return consumer.Applied, nil
}

func compose(eventType, orderID string) (subject, body string, ok bool) {
	switch eventType {
	case paydomain.EventPaymentCompleted:
		return "Your order is confirmed",
			fmt.Sprintf("Payment for order %s was received. We are preparing your shipment.", orderID), true
	case paydomain.EventPaymentFailed:
		return "Payment failed",
			fmt.Sprintf("Payment for order %s was declined. Please update your payment method and try again.", orderID), true
	case domain.EventOrderOutOfStock:
		return "Order could not be fulfilled",
			fmt.Sprintf("Order %s was cancelled because one or more items are out of stock.", orderID), true
	default:
		return "", "", false
	}
}
