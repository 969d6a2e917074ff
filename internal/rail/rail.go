// Package rail defines the connector to an external Lightning node
// operator. The engine never settles payments itself; it orchestrates
// calls on this interface and records the outcome.
package rail

import (
	"context"
	"time"

	"github.com/pesabit/pesabit/internal/events"
)

// Invoice is a freshly issued Lightning invoice and its tracking id.
type Invoice struct {
	Invoice     string
	OperationID string
}

// DecodedInvoice is the amount and memo carried by a presented invoice.
type DecodedInvoice struct {
	AmountMsats int64
	Description string
}

// Payment is the outcome of paying an invoice.
type Payment struct {
	OperationID string
	FeeMsats    int64
}

// LnurlWithdrawPoint is a shareable pre-authorized withdraw code. The k1
// secret correlates the later wallet callback to the ledger row.
type LnurlWithdrawPoint struct {
	Lnurl       string
	K1          string
	CallbackURL string
	MaxMsats    int64
	MinMsats    int64
	ExpiresAt   time.Time
}

// Lightning is the payment rail adapter consumed by the wallet engines.
type Lightning interface {
	// Invoice requests a new invoice for the given amount.
	Invoice(ctx context.Context, amountMsats int64, memo string) (Invoice, error)

	// Decode parses a presented invoice without paying it.
	Decode(ctx context.Context, invoice string) (DecodedInvoice, error)

	// Pay settles an invoice and reports the routing fee.
	Pay(ctx context.Context, invoice string) (Payment, error)

	// Receive registers interest in the settlement of a receive operation;
	// the outcome arrives later as a typed event addressed to target.
	Receive(ctx context.Context, target events.Engine, operationID string) error

	// CreateLnurlWithdrawPoint provisions a withdraw point capped at
	// maxMsats. Settlement happens via the LNURL callback.
	CreateLnurlWithdrawPoint(ctx context.Context, maxMsats, minMsats int64, memo string) (LnurlWithdrawPoint, error)
}
