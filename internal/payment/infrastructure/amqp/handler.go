// Package amqp binds the payment service to its queue.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	invdomain "github.com/acmecorp/orderflow/internal/inventory/domain"
	"github.com/acmecorp/orderflow/internal/payment/application"
	paypg "github.com/acmecorp/orderflow/internal/payment/infrastructure/postgres"
	"github.com/acmecorp/orderflow/pkg/consumer"
	"github.com/acmecorp/orderflow/pkg/outbox"
)

// Queue is this service's durable queue, bound to inventory.reserved.
const Queue = "q.payment.inventory-reserved"

type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	outbox *outbox.Store
}

func NewHandler(log *slog.Logger, svc *application.Service, ob *outbox.Store) *Handler {
	return &Handler{log: log, svc: svc, outbox: ob}
}

func (h *Handler) Handle(ctx context.Context, tx pgx.Tx, msg consumer.Message) (consumer.Outcome, error) {
	var evt invdomain.InventoryReserved
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return consumer.Rejected, fmt.Errorf("decode inventory.reserved: %w", err)
	}
	return h.svc.Process(ctx, paypg.NewTxStore(tx, h.outbox), evt)
}
