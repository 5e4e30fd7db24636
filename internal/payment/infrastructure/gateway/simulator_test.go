package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/acmecorp/orderflow/internal/payment/application"
)

func TestSimulatorVerdictFollowsRate(t *testing.T) {
	amount := decimal.RequireFromString("10.00")

	always := NewSimulator(1.0)
	always.roll = func() float64 { return 0.999 }
	assert.NoError(t, always.Charge(context.Background(), "o-1", amount))

	never := NewSimulator(0.0)
	never.roll = func() float64 { return 0.0 }
	assert.ErrorIs(t, never.Charge(context.Background(), "o-1", amount), application.ErrDeclined)
}

func TestSimulatorBoundary(t *testing.T) {
	s := NewSimulator(0.5)

	s.roll = func() float64 { return 0.49 }
	assert.NoError(t, s.Charge(context.Background(), "o-1", decimal.Zero))

	s.roll = func() float64 { return 0.5 }
	assert.ErrorIs(t, s.Charge(context.Background(), "o-1", decimal.Zero), application.ErrDeclined)
}
