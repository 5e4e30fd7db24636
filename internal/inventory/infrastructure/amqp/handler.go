// Package amqp binds the inventory service to its queue: it decodes
// order.placed deliveries and runs reservations on the consumer runtime's
// transaction.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/acmecorp/orderflow/internal/inventory/application"
	invpg "github.com/acmecorp/orderflow/internal/inventory/infrastructure/postgres"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

// Queue is this service's durable queue, bound to order.placed.
const Queue = "q.inventory.order-placed"

type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	outbox *outbox.Store
}

func NewHandler(log *slog.Logger, svc *application.Service, ob *outbox.Store) *Handler {
	return &Handler{log: log, svc: svc, outbox: ob}
}

func (h *Handler) Handle(ctx context.Context, tx pgx.Tx, msg consumer.Message) (consumer.Outcome, error) {
	var evt orderdomain.OrderPlaced
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return consumer.Rejected, fmt.Errorf("decode order.placed: %w", err)
	}
	return h.svc.Reserve(ctx, invpg.NewTxStore(tx, h.outbox), evt)
}
