package payments

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/domain"
)

// Gateway is the substitution point for a real payment provider. The
// orchestrator only ever talks to this interface.
type Gateway interface {
	Authorize(ctx context.Context, amount float64, method string) (string, error)
	Capture(ctx context.Context, txnID string, amount float64) error
	Refund(ctx context.Context, txnID string, amount float64) error
}

// SimulatedGateway stands in for the external provider: a fixed artificial
// delay followed by a random accept/decline. The outcome source is injectable
// so tests are deterministic.
type SimulatedGateway struct {
	delay   time.Duration
	outcome func() bool
}

func NewSimulatedGateway(delay time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		delay:   delay,
		outcome: func() bool { return rand.IntN(2) == 0 },
	}
}

func NewSimulatedGatewayWithOutcome(delay time.Duration, outcome func() bool) *SimulatedGateway {
	return &SimulatedGateway{delay: delay, outcome: outcome}
}

func (g *SimulatedGateway) Authorize(ctx context.Context, amount float64, method string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	if !g.outcome() {
		return "", errors.Wrap(domain.ErrPaymentDeclined, "gateway declined")
	}
	return "SIM-" + uuid.New().String(), nil
}

func (g *SimulatedGateway) Capture(ctx context.Context, txnID string, amount float64) error {
	return g.wait(ctx)
}

func (g *SimulatedGateway) Refund(ctx context.Context, txnID string, amount float64) error {
	return g.wait(ctx)
}

func (g *SimulatedGateway) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.delay):
		return nil
	}
}
