// Package application implements order intake: validate the request,
// price it, and commit the order row and its announcement atomically.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acmecorp/orderflow/internal/order/domain"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrEmptyOrder     = errors.New("order has no items")
	ErrInvalidQty     = errors.New("item quantity must be positive")
)

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	SKU string
	Qty int
}

// PlaceOrder is the intake command.
type PlaceOrder struct {
	CustomerID string
	Email      string
	Items      []ItemRequest
}

type Service struct {
	repo    OrderRepository
	catalog ProductCatalog
}

func NewService(repo OrderRepository, catalog ProductCatalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// PlaceOrder validates the request against the catalogue, computes the
// total from catalogue prices, and persists the order in status placed
// together with its order.placed outbox row. Validation failures surface
// synchronously; nothing is persisted for them.
func (s *Service) PlaceOrder(ctx context.Context, cmd PlaceOrder) (domain.Order, error) {
	if len(cmd.Items) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	skus := make([]string, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		if it.Qty <= 0 {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrInvalidQty, it.SKU)
		}
		skus = append(skus, it.SKU)
	}

	prices, err := s.catalog.Prices(ctx, skus)
	if err != nil {
		return domain.Order{}, fmt.Errorf("price lookup: %w", err)
	}

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	placed := make([]domain.PlacedItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		price, ok := prices[it.SKU]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrUnknownProduct, it.SKU)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Qty))))
		items = append(items, domain.OrderItem{SKU: it.SKU, Qty: it.Qty, UnitPrice: price})
		placed = append(placed, domain.PlacedItem{SKU: it.SKU, Qty: it.Qty})
	}

	o := domain.Order{
		ID:          uuid.New(),
		CustomerID:  cmd.CustomerID,
		Email:       cmd.Email,
		Status:      domain.StatusPlaced,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   time.Now().UTC(),
	}
	evt := domain.OrderPlaced{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID,
		Email:       o.Email,
		Items:       placed,
		TotalAmount: total,
	}

	if err := s.repo.SaveWithOutbox(ctx, o, evt); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}
	return o, nil
}

// Get returns one order by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}
