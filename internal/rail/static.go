package rail

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/events"
)

const staticInvoicePrefix = "lnpb"

// EncodeInvoice builds a synthetic invoice carrying the amount inline, in
// the format StaticNode decodes. Used by the static adapters and tests.
func EncodeInvoice(amountMsats int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%dm%s", staticInvoicePrefix, amountMsats, suffix)
}

// StaticNode simulates a Lightning node operator in-process. Invoices it
// issues (and those built with EncodeInvoice) decode deterministically,
// payments succeed with a fixed fee, and receive registrations are
// replayed through the event router on SettleReceive.
type StaticNode struct {
	// FeeMsats is charged on every simulated payment.
	FeeMsats int64
	// FailPayments makes Pay return an error, for failure-path tests.
	FailPayments bool
	// CallbackBaseURL prefixes LNURL withdraw callback URLs.
	CallbackBaseURL string

	router *events.Router

	mu       sync.Mutex
	receives map[string]events.Engine
}

// NewStaticNode builds a static rail wired to the given router.
func NewStaticNode(router *events.Router) *StaticNode {
	return &StaticNode{
		FeeMsats:        50,
		CallbackBaseURL: "http://localhost:8080/lnurl/withdraw/callback",
		router:          router,
		receives:        make(map[string]events.Engine),
	}
}

// Invoice issues a synthetic invoice with a fresh operation id.
func (n *StaticNode) Invoice(_ context.Context, amountMsats int64, _ string) (Invoice, error) {
	if amountMsats <= 0 {
		return Invoice{}, fmt.Errorf("invoice amount must be positive")
	}
	return Invoice{Invoice: EncodeInvoice(amountMsats), OperationID: uuid.NewString()}, nil
}

// Decode parses a synthetic invoice back into its amount.
func (n *StaticNode) Decode(_ context.Context, invoice string) (DecodedInvoice, error) {
	rest, ok := strings.CutPrefix(invoice, staticInvoicePrefix)
	if !ok {
		return DecodedInvoice{}, fmt.Errorf("unrecognized invoice format")
	}
	amountStr, _, ok := strings.Cut(rest, "m")
	if !ok {
		return DecodedInvoice{}, fmt.Errorf("unrecognized invoice format")
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil || amount <= 0 {
		return DecodedInvoice{}, fmt.Errorf("invalid invoice amount")
	}
	return DecodedInvoice{AmountMsats: amount}, nil
}

// Pay settles a synthetic invoice with the configured fee.
func (n *StaticNode) Pay(ctx context.Context, invoice string) (Payment, error) {
	if n.FailPayments {
		return Payment{}, fmt.Errorf("payment route not found")
	}
	if _, err := n.Decode(ctx, invoice); err != nil {
		return Payment{}, err
	}
	return Payment{OperationID: uuid.NewString(), FeeMsats: n.FeeMsats}, nil
}

// Receive records interest in a receive operation.
func (n *StaticNode) Receive(_ context.Context, target events.Engine, operationID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receives[operationID] = target
	return nil
}

// SettleReceive simulates the node reporting a receive outcome for a
// registered operation, publishing the typed event to the router.
func (n *StaticNode) SettleReceive(ctx context.Context, operationID string, success bool, linkedCollection string) {
	n.mu.Lock()
	target, ok := n.receives[operationID]
	n.mu.Unlock()
	if !ok {
		return
	}
	if success {
		n.router.ReceiveSuccess(ctx, events.ReceiveSuccess{
			Target:           target,
			OperationID:      operationID,
			LinkedCollection: linkedCollection,
		})
		return
	}
	n.router.ReceiveFailure(ctx, events.ReceiveFailure{
		Target:      target,
		OperationID: operationID,
		Reason:      "invoice expired",
	})
}

// CreateLnurlWithdrawPoint provisions a synthetic withdraw point.
func (n *StaticNode) CreateLnurlWithdrawPoint(_ context.Context, maxMsats, minMsats int64, _ string) (LnurlWithdrawPoint, error) {
	if maxMsats <= 0 {
		return LnurlWithdrawPoint{}, fmt.Errorf("withdraw cap must be positive")
	}
	k1 := strings.ReplaceAll(uuid.NewString(), "-", "")
	return LnurlWithdrawPoint{
		Lnurl:       "lnurl1" + k1,
		K1:          k1,
		CallbackURL: n.CallbackBaseURL,
		MaxMsats:    maxMsats,
		MinMsats:    minMsats,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil
}
