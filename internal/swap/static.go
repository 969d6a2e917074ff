package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/rail"
)

// StaticSwapper simulates a swap provider with a fixed exchange rate.
// New swaps start pending; status changes are driven externally (tests
// publish SwapStatus events directly).
type StaticSwapper struct {
	// Rate is fiat units per whole bitcoin.
	Rate float64
	// FailSwaps makes swap creation return an error, for failure paths.
	FailSwaps bool
}

// NewStaticSwapper builds a static provider at the given rate.
func NewStaticSwapper(rate float64) *StaticSwapper {
	return &StaticSwapper{Rate: rate}
}

// GetQuote returns a short-lived quote at the fixed rate.
func (p *StaticSwapper) GetQuote(_ context.Context, from, to string) (Quote, error) {
	return Quote{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Rate:      p.Rate,
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}, nil
}

// CreateOnrampSwap starts a simulated fiat collection.
func (p *StaticSwapper) CreateOnrampSwap(_ context.Context, _ Quote, amountFiat float64, payoutInvoice, _ string) (Swap, error) {
	if p.FailSwaps {
		return Swap{}, fmt.Errorf("swap provider unavailable")
	}
	if amountFiat <= 0 {
		return Swap{}, fmt.Errorf("swap amount must be positive")
	}
	if payoutInvoice == "" {
		return Swap{}, fmt.Errorf("payout invoice is required")
	}
	return Swap{ID: uuid.NewString(), Status: StatusPending}, nil
}

// CreateOfframpSwap starts a simulated fiat payout and returns the funding
// invoice for it.
func (p *StaticSwapper) CreateOfframpSwap(_ context.Context, _ Quote, amountMsats int64, fiatTarget, _ string) (Swap, error) {
	if p.FailSwaps {
		return Swap{}, fmt.Errorf("swap provider unavailable")
	}
	if amountMsats <= 0 {
		return Swap{}, fmt.Errorf("swap amount must be positive")
	}
	if fiatTarget == "" {
		return Swap{}, fmt.Errorf("fiat payout target is required")
	}
	return Swap{
		ID:               uuid.NewString(),
		Status:           StatusPending,
		LightningInvoice: rail.EncodeInvoice(amountMsats),
	}, nil
}
