package wallet

import (
	"context"
	"time"

	"github.com/pesabit/pesabit/internal/ledger"
)

// CallbackResult is the outcome of an LNURL withdraw callback, mapped by
// the handler onto the LUD-03 response shape. A rejected callback is not
// an engine error: the reservation stays live until the point expires.
type CallbackResult struct {
	OK     bool
	Reason string
	TxID   string
}

func callbackError(reason string) CallbackResult {
	return CallbackResult{Reason: reason}
}

// ProcessLnUrlWithdrawCallback settles the withdrawal reserved behind an
// LNURL withdraw point: the claiming wallet presents the k1 secret and an
// invoice to pay. The invoice amount plus the routing fee must fit the
// reserved cap.
func (s *Service) ProcessLnUrlWithdrawCallback(ctx context.Context, k1, invoice string) CallbackResult {
	if k1 == "" || invoice == "" {
		return callbackError("k1 and pr are required")
	}

	tx, err := s.store.FindByTracker(ctx, k1)
	if err != nil {
		return callbackError("unknown withdraw request")
	}
	if tx.Type != ledger.TypeWithdraw || tx.Channel != ledger.ChannelLnurl {
		return callbackError("unknown withdraw request")
	}
	if tx.Status != ledger.StatusPending && tx.Status != ledger.StatusApproved {
		return callbackError("withdraw request already processed")
	}
	if p := tx.Payload; p != nil && p.LnurlWithdraw != nil && time.Now().UTC().After(p.LnurlWithdraw.ExpiresAt) {
		return callbackError("withdraw request expired")
	}

	dec, err := s.node.Decode(ctx, invoice)
	if err != nil {
		return callbackError("invalid invoice")
	}
	if dec.AmountMsats > tx.AmountMsats {
		return callbackError("invoice exceeds withdrawable amount")
	}

	pay, err := s.node.Pay(ctx, invoice)
	if err != nil {
		s.logger.Error("lnurl withdraw payment failed", "tx_id", tx.ID, "error", err)
		return callbackError("payment failed")
	}

	now := time.Now().UTC()
	tx.AmountMsats = dec.AmountMsats + pay.FeeMsats
	if err := tx.SetStatus(ledger.StatusComplete, now); err != nil {
		// lost the race against another settlement path
		return callbackError("withdraw request already processed")
	}
	if err := s.store.Update(ctx, tx); err != nil {
		s.logger.Error("lnurl withdraw settlement write failed", "tx_id", tx.ID, "error", err)
		return callbackError("internal error")
	}
	s.logger.Info("lnurl withdraw settled", "tx_id", tx.ID, "amount_msats", tx.AmountMsats)
	return CallbackResult{OK: true, TxID: tx.ID}
}
