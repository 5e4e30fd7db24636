// Package amqp binds the notification service to its queues. Unlike the
// other consumers it listens on three routing keys, one durable queue
// per key, all funneled through the same handler.
package amqp

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	invdomain "github.com/acmecorp/orderflow/internal/inventory/domain"
	"github.com/acmecorp/orderflow/internal/notification/application"
	notifpg "github.com/acmecorp/orderflow/internal/notification/infrastructure/postgres"
	paydomain "github.com/acmecorp/orderflow/internal/payment/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
)

// Queues maps each subscribed routing key to this service's durable
// queue for it.
var Queues = map[string]string{
	paydomain.EventPaymentCompleted: "q.notification.payment-completed",
	paydomain.EventPaymentFailed:    "q.notification.payment-failed",
	invdomain.EventOrderOutOfStock:  "q.notification.order-out-of-stock",
}

type Handler struct {
	log *slog.Logger
	svc *application.Service
}

func NewHandler(log *slog.Logger, svc *application.Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// Handle routes on the delivery's routing key; the payloads only need
// the order id, which the runtime has already extracted as EventID.
func (h *Handler) Handle(ctx context.Context, tx pgx.Tx, msg consumer.Message) (consumer.Outcome, error) {
	return h.svc.Notify(ctx, notifpg.NewTxStore(tx), msg.RoutingKey, msg.EventID)
}
