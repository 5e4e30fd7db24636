// Package gateway holds the stand-in payment provider used outside
// production: a fault injector that approves charges with a configured
// probability. Any real provider client satisfying application.Gateway
// drops in unchanged.
package gateway

import (
	"context"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/acmecorp/orderflow/internal/payment/application"
)

type Simulator struct {
	successRate float64
	roll        func() float64
}

func NewSimulator(successRate float64) *Simulator {
	return &Simulator{successRate: successRate, roll: rand.Float64}
}

func (s *Simulator) Charge(ctx context.Context, orderID string, amount decimal.Decimal) error {
	if s.roll() < s.successRate {
		return nil
	}
	return application.ErrDeclined
}
