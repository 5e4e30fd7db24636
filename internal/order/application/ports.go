package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acmecorp/orderflow/internal/order/domain"
)

// OrderRepository persists an order together with its order.placed outbox
// row in one transaction.
type OrderRepository interface {
	SaveWithOutbox(ctx context.Context, o domain.Order, evt domain.OrderPlaced) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
}

// ProductCatalog resolves unit prices for the requested SKUs. A SKU
// missing from the result does not exist.
type ProductCatalog interface {
	Prices(ctx context.Context, skus []string) (map[string]decimal.Decimal, error)
}
