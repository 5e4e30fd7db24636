// Package application settles reserved orders: charge the gateway, then
// persist the verdict and announce it atomically.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	invdomain "github.com/acmecorp/orderflow/internal/inventory/domain"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/internal/payment/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
)

type Service struct {
	log     *slog.Logger
	gateway Gateway
}

func NewService(log *slog.Logger, gateway Gateway) *Service {
	return &Service{log: log, gateway: gateway}
}

// Process applies an inventory.reserved event. The causal precondition is
// checked against stored state, not delivery order: payment only proceeds
// from an order that is actually reserved. A gateway decline is a
// terminal outcome (payment_failed), not an error.
func (s *Service) Process(ctx context.Context, store PaymentStore, evt invdomain.InventoryReserved) (consumer.Outcome, error) {
	status, amount, ok, err := store.OrderForPayment(ctx, evt.OrderID)
	if err != nil {
		return consumer.Retry, err
	}
	if !ok {
		return consumer.Rejected, fmt.Errorf("order %s does not exist", evt.OrderID)
	}
	if status != orderdomain.StatusReserved {
		return consumer.Rejected, fmt.Errorf("order %s is %s: %w", evt.OrderID, status, ErrStatusConflict)
	}

	cerr := s.gateway.Charge(ctx, evt.OrderID, amount)
	switch {
	case errors.Is(cerr, ErrDeclined):
		if err := store.SetOrderStatus(ctx, evt.OrderID, orderdomain.StatusReserved, orderdomain.StatusPaymentFailed); err != nil {
			return s.classify(err)
		}
		err := store.AppendEvent(ctx, domain.EventPaymentFailed, domain.PaymentFailed{
			OrderID: evt.OrderID,
			Reason:  domain.ReasonCardDeclined,
		})
		if err != nil {
			return consumer.Retry, err
		}
		s.log.Info("payment failed", "order_id", evt.OrderID, "amount", amount)
		return consumer.Applied, nil
	case cerr != nil:
		return consumer.Retry, fmt.Errorf("gateway charge: %w", cerr)
	}

	if err := store.SetOrderStatus(ctx, evt.OrderID, orderdomain.StatusReserved, orderdomain.StatusPaid); err != nil {
		return s.classify(err)
	}
	if err := store.AppendEvent(ctx, domain.EventPaymentCompleted, domain.PaymentCompleted{OrderID: evt.OrderID}); err != nil {
		return consumer.Retry, err
	}
	s.log.Info("payment completed", "order_id", evt.OrderID, "amount", amount)
	return consumer.Applied, nil
}

func (s *Service) classify(err error) (consumer.Outcome, error) {
	if errors.Is(err, ErrStatusConflict) {
		return consumer.Rejected, err
	}
	return consumer.Retry, err
}
