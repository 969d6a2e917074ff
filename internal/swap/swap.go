// Package swap defines the connector to an external fiat on/off-ramp swap
// provider, plus fiat<->msats conversion helpers.
package swap

import (
	"context"
	"math"
	"time"
)

// Status is the provider-reported lifecycle of a swap. Values map 1:1 onto
// ledger transaction statuses.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Quote is an exchange rate offer. Rate is fiat units per whole bitcoin.
type Quote struct {
	ID        string
	From      string
	To        string
	Rate      float64
	ExpiresAt time.Time
}

// Swap is a created on-ramp or off-ramp swap. LightningInvoice is set on
// off-ramp swaps only: the engine pays it to fund the fiat payout.
type Swap struct {
	ID               string
	Status           Status
	LightningInvoice string
}

// Service is the swap provider adapter consumed by the wallet engines.
type Service interface {
	// GetQuote fetches a rate offer for a currency pair.
	GetQuote(ctx context.Context, from, to string) (Quote, error)

	// CreateOnrampSwap starts a fiat collection whose payout target is the
	// given Lightning invoice.
	CreateOnrampSwap(ctx context.Context, quote Quote, amountFiat float64, payoutInvoice, reference string) (Swap, error)

	// CreateOfframpSwap starts a fiat payout funded by the Lightning
	// invoice it returns.
	CreateOfframpSwap(ctx context.Context, quote Quote, amountMsats int64, fiatTarget, reference string) (Swap, error)
}

// MsatsPerBTC is the number of millisatoshis in one bitcoin.
const MsatsPerBTC = 100_000_000_000

// FiatToMsats converts a fiat amount to msats at the quoted rate.
func FiatToMsats(amountFiat, rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(math.Round(amountFiat / rate * MsatsPerBTC))
}

// MsatsToFiat converts an msats amount to fiat at the quoted rate.
func MsatsToFiat(amountMsats int64, rate float64) float64 {
	return float64(amountMsats) * rate / MsatsPerBTC
}
