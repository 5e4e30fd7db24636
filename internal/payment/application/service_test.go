package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/acmecorp/orderflow/internal/inventory/domain"
	orderdomain "github.com/acmecorp/orderflow/internal/order/domain"
	"github.com/acmecorp/orderflow/internal/payment/domain"
	"github.com/acmecorp/orderflow/pkg/consumer"
)

type memStore struct {
	status   map[string]orderdomain.OrderStatus
	amount   decimal.Decimal
	events   []string
	payloads []any
	loadErr  error
}

func newMemStore(status orderdomain.OrderStatus) *memStore {
	return &memStore{
		status: map[string]orderdomain.OrderStatus{"o-1": status},
		amount: decimal.RequireFromString("54.98"),
	}
}

func (m *memStore) OrderForPayment(ctx context.Context, orderID string) (orderdomain.OrderStatus, decimal.Decimal, bool, error) {
	if m.loadErr != nil {
		return "", decimal.Zero, false, m.loadErr
	}
	st, ok := m.status[orderID]
	return st, m.amount, ok, nil
}

func (m *memStore) SetOrderStatus(ctx context.Context, orderID string, from, to orderdomain.OrderStatus) error {
	if m.status[orderID] != from {
		return ErrStatusConflict
	}
	m.status[orderID] = to
	return nil
}

func (m *memStore) AppendEvent(ctx context.Context, eventType string, payload any) error {
	m.events = append(m.events, eventType)
	m.payloads = append(m.payloads, payload)
	return nil
}

type stubGateway struct {
	err     error
	charged []string
}

func (g *stubGateway) Charge(ctx context.Context, orderID string, amount decimal.Decimal) error {
	g.charged = append(g.charged, orderID)
	return g.err
}

func process(t *testing.T, store *memStore, gw *stubGateway) (consumer.Outcome, error) {
	t.Helper()
	svc := NewService(slog.New(slog.DiscardHandler), gw)
	return svc.Process(context.Background(), store, invdomain.InventoryReserved{OrderID: "o-1"})
}

func TestProcessChargeSucceeds(t *testing.T) {
	store := newMemStore(orderdomain.StatusReserved)
	gw := &stubGateway{}

	out, err := process(t, store, gw)
	require.NoError(t, err)
	assert.Equal(t, consumer.Applied, out)

	assert.Equal(t, orderdomain.StatusPaid, store.status["o-1"])
	assert.Equal(t, []string{domain.EventPaymentCompleted}, store.events)
	assert.Equal(t, []string{"o-1"}, gw.charged)
}

func TestProcessDeclineIsTerminalOutcome(t *testing.T) {
	store := newMemStore(orderdomain.StatusReserved)
	gw := &stubGateway{err: ErrDeclined}

	out, err := process(t, store, gw)
	require.NoError(t, err)
	assert.Equal(t, consumer.Applied, out, "a decline is persisted, not retried")

	assert.Equal(t, orderdomain.StatusPaymentFailed, store.status["o-1"])
	require.Equal(t, []string{domain.EventPaymentFailed}, store.events)
	assert.Equal(t, domain.PaymentFailed{OrderID: "o-1", Reason: domain.ReasonCardDeclined}, store.payloads[0])
}

func TestProcessRequiresReservedOrder(t *testing.T) {
	for _, status := range []orderdomain.OrderStatus{
		orderdomain.StatusPlaced,
		orderdomain.StatusPaid,
		orderdomain.StatusOutOfStock,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemStore(status)
			gw := &stubGateway{}

			out, err := process(t, store, gw)
			require.ErrorIs(t, err, ErrStatusConflict)
			assert.Equal(t, consumer.Rejected, out)
			assert.Empty(t, gw.charged, "no charge without a reserved order")
		})
	}
}

func TestProcessUnknownOrderIsRejected(t *testing.T) {
	store := newMemStore(orderdomain.StatusReserved)
	delete(store.status, "o-1")

	out, err := process(t, store, &stubGateway{})
	require.Error(t, err)
	assert.Equal(t, consumer.Rejected, out)
}

func TestProcessGatewayOutageAsksForRetry(t *testing.T) {
	store := newMemStore(orderdomain.StatusReserved)
	gw := &stubGateway{err: errors.New("gateway timeout")}

	out, err := process(t, store, gw)
	require.Error(t, err)
	assert.Equal(t, consumer.Retry, out)
	assert.Equal(t, orderdomain.StatusReserved, store.status["o-1"], "no state change on transient failure")
}

func TestProcessStoreErrorAsksForRetry(t *testing.T) {
	store := newMemStore(orderdomain.StatusReserved)
	store.loadErr = errors.New("connection reset")

	out, err := process(t, store, &stubGateway{})
	require.Error(t, err)
	assert.Equal(t, consumer.Retry, out)
}
