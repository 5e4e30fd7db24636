// Package application implements all-or-nothing stock reservation. Row
// locks are taken on every requested product before any stock check, so
// two concurrent reservations against the same SKU serialize and can
// never both pass a check the stock only covers once.
package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/acmecorp/orderflow/internal/inventory/domain"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
)

type Service struct {
	log *slog.Logger
}

func NewService(log *slog.Logger) *Service {
	return &Service{log: log}
}

// Reserve applies an order.placed event. Every line item is locked and
// checked first; only when all pass is any stock decremented. A single
// short item aborts the whole reservation with no partial decrement and
// moves the order to out_of_stock, which is a valid terminal outcome, not
// an error.
func (s *Service) Reserve(ctx context.Context, store ReservationStore, evt orderdomain.OrderPlaced) (consumer.Outcome, error) {
	for _, item := range evt.Items {
		have, ok, err := store.LockStock(ctx, item.SKU)
		if err != nil {
			return consumer.Retry, err
		}
		if !ok || have < item.Qty {
			s.log.Info("out of stock", "order_id", evt.OrderID, "sku", item.SKU, "need", item.Qty, "have", have)
			return s.reject(ctx, store, evt.OrderID)
		}
	}

	for _, item := range evt.Items {
		if err := store.DecrementStock(ctx, item.SKU, item.Qty); err != nil {
			return consumer.Retry, err
		}
	}
	if err := store.SetOrderStatus(ctx, evt.OrderID, orderdomain.StatusPlaced, orderdomain.StatusReserved); err != nil {
		return s.classify(err)
	}
	if err := store.AppendEvent(ctx, domain.EventInventoryReserved, domain.InventoryReserved{OrderID: evt.OrderID}); err != nil {
		return consumer.Retry, err
	}

	s.log.Info("stock reserved", "order_id", evt.OrderID, "items", len(evt.Items))
	return consumer.Applied, nil
}

func (s *Service) reject(ctx context.Context, store ReservationStore, orderID string) (consumer.Outcome, error) {
	if err := store.SetOrderStatus(ctx, orderID, orderdomain.StatusPlaced, orderdomain.StatusOutOfStock); err != nil {
		return s.classify(err)
	}
	err := store.AppendEvent(ctx, domain.EventOrderOutOfStock, domain.OrderOutOfStock{
		OrderID: orderID,
		Reason:  domain.ReasonInsufficientStock,
	})
	if err != nil {
		return consumer.Retry, err
	}
	return consumer.Applied, nil
}

func (s *Service) classify(err error) (consumer.Outcome, error) {
	if errors.Is(err, ErrStatusConflict) {
		return consumer.Rejected, err
	}
	return consumer.Retry, err
}
