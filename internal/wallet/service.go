package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/rail"
	"github.com/pesabit/pesabit/internal/swap"
)

var (
	// ErrAmountRequired occurs when neither or both amount fields are set.
	ErrAmountRequired = errors.New("exactly one of fiat or msats amount is required")

	// ErrChannelRequired occurs when a withdrawal selects no channel, or
	// more than one.
	ErrChannelRequired = errors.New("exactly one withdrawal channel is required")

	// ErrStateConflict indicates an operation attempted on a row whose
	// status does not allow it. The row is left unchanged.
	ErrStateConflict = errors.New("transaction state does not allow this operation")

	// ErrNotOwner indicates the row belongs to a different owner.
	ErrNotOwner = errors.New("transaction does not belong to this owner")

	// ErrRail wraps failures from the external payment rails.
	ErrRail = errors.New("payment rail failure")
)

const (
	snapshotPageSize = 20
	lnurlMinMsats    = 1_000
)

// Snapshot is the consistent result shape of synchronous engine calls: the
// affected transaction id, a recent page of the wallet's ledger, and the
// derived balance view.
type Snapshot struct {
	TxID   string      `json:"tx_id"`
	Ledger ledger.Page `json:"ledger"`
	Meta   ledger.Meta `json:"meta"`
}

// Service is the solo wallet engine: deposit/withdraw orchestration over
// the ledger store and the external rail and swap adapters.
type Service struct {
	store    ledger.Store
	node     rail.Lightning
	swaps    swap.Service
	router   *events.Router
	logger   *slog.Logger
	currency string
}

// NewService builds the solo engine and registers it for payment events.
func NewService(store ledger.Store, node rail.Lightning, swaps swap.Service, router *events.Router, currency string, logger *slog.Logger) *Service {
	if currency == "" {
		currency = "KES"
	}
	s := &Service{
		store:    store,
		node:     node,
		swaps:    swaps,
		router:   router,
		logger:   logger,
		currency: currency,
	}
	router.Register(events.EngineSolo, s)
	return s
}

// DepositInput captures a deposit request. Exactly one amount field must be
// set. A non-empty OnrampTarget selects the fiat on-ramp channel.
type DepositInput struct {
	OwnerID      string
	MemberID     string
	WalletID     string
	AmountFiat   float64
	AmountMsats  int64
	OnrampTarget string
	Reference    string
}

// Deposit quotes, issues a Lightning invoice and records a deposit row.
// With an on-ramp target it additionally initiates a fiat-collection swap
// paying out to that invoice; otherwise the engine registers interest in
// the invoice's receive event.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (Snapshot, error) {
	if in.OwnerID == "" || in.WalletID == "" {
		return Snapshot{}, fmt.Errorf("%w: owner and wallet ids are required", ErrStateConflict)
	}
	q, msats, fiat, err := s.resolveAmount(ctx, in.AmountFiat, in.AmountMsats)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.ensureWallet(ctx, in.OwnerID, in.MemberID, in.WalletID); err != nil {
		return Snapshot{}, err
	}

	inv, err := s.node.Invoice(ctx, msats, depositMemo(in.WalletID, in.Reference))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
	}

	now := time.Now().UTC()
	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		MemberID:    in.MemberID,
		WalletID:    in.WalletID,
		Type:        ledger.TypeDeposit,
		Channel:     ledger.ChannelLightning,
		AmountMsats: msats,
		AmountFiat:  fiat,
		Reference:   in.Reference,
		Payload: &ledger.PaymentPayload{
			Kind:    ledger.PayloadInvoice,
			Invoice: &ledger.InvoicePayload{Invoice: inv.Invoice, OperationID: inv.OperationID},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.OnrampTarget != "" {
		sw, err := s.swaps.CreateOnrampSwap(ctx, q, fiat, inv.Invoice, in.Reference)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
		}
		tx.Channel = ledger.ChannelSwap
		tx.PaymentTracker = sw.ID
		stampStatus(&tx, swapLedgerStatus(sw.Status), now)
	} else {
		tx.PaymentTracker = inv.OperationID
		stampStatus(&tx, ledger.StatusPending, now)
		if err := s.node.Receive(ctx, events.EngineSolo, inv.OperationID); err != nil {
			s.logger.Warn("receive registration failed", "operation_id", inv.OperationID, "error", err)
		}
	}

	if err := s.store.Create(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx), nil
}

// ContinueDepositInput retries an expired or unpaid deposit invoice.
type ContinueDepositInput struct {
	OwnerID     string
	TxID        string
	AmountFiat  float64
	AmountMsats int64
	Reference   string
}

// ContinueDeposit re-quotes and re-issues an invoice against a pending
// deposit row, overwriting amount, tracker and payload in place.
// Processing and terminal rows are rejected unchanged.
func (s *Service) ContinueDeposit(ctx context.Context, in ContinueDepositInput) (Snapshot, error) {
	tx, err := s.store.Get(ctx, in.TxID)
	if err != nil {
		return Snapshot{}, err
	}
	if tx.OwnerID != in.OwnerID {
		return Snapshot{}, ErrNotOwner
	}
	if tx.Type != ledger.TypeDeposit || tx.Status != ledger.StatusPending {
		return Snapshot{}, ErrStateConflict
	}

	fiat, msats := in.AmountFiat, in.AmountMsats
	if fiat == 0 && msats == 0 {
		// keep the original request, re-quoted at today's rate
		if tx.AmountFiat > 0 {
			fiat = tx.AmountFiat
		} else {
			msats = tx.AmountMsats
		}
	}
	_, msats, fiat, err = s.resolveAmount(ctx, fiat, msats)
	if err != nil {
		return Snapshot{}, err
	}

	ref := in.Reference
	if ref == "" {
		ref = tx.Reference
	}
	inv, err := s.node.Invoice(ctx, msats, depositMemo(tx.WalletID, ref))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
	}

	now := time.Now().UTC()
	tx.AmountMsats = msats
	tx.AmountFiat = fiat
	tx.Channel = ledger.ChannelLightning
	tx.PaymentTracker = inv.OperationID
	tx.Payload = &ledger.PaymentPayload{
		Kind:    ledger.PayloadInvoice,
		Invoice: &ledger.InvoicePayload{Invoice: inv.Invoice, OperationID: inv.OperationID},
	}
	tx.Reference = ref
	tx.RetryCount++
	if err := tx.SetStatus(ledger.StatusPending, now); err != nil {
		return Snapshot{}, ErrStateConflict
	}
	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	if err := s.node.Receive(ctx, events.EngineSolo, inv.OperationID); err != nil {
		s.logger.Warn("receive registration failed", "operation_id", inv.OperationID, "error", err)
	}
	return s.snapshot(ctx, tx), nil
}

// WithdrawInput captures a withdrawal request. Exactly one channel applies:
// a Lightning invoice to pay, an LNURL withdraw point to provision, or a
// fiat off-ramp payout target.
type WithdrawInput struct {
	OwnerID        string
	MemberID       string
	WalletID       string
	AmountFiat     float64
	AmountMsats    int64
	Invoice        string
	Lnurl          bool
	OfframpTarget  string
	IdempotencyKey string
	Reference      string
}

func (in WithdrawInput) channelCount() int {
	n := 0
	if in.Invoice != "" {
		n++
	}
	if in.Lnurl {
		n++
	}
	if in.OfframpTarget != "" {
		n++
	}
	return n
}

// Withdraw records and executes a withdrawal. The row is created and its
// amount reserved before any external call, so concurrent balance reads
// see the reservation. A repeated idempotency key returns the original
// row's snapshot without touching the ledger or the rails.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (Snapshot, error) {
	if in.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, in.OwnerID, ledger.TypeWithdraw, in.IdempotencyKey)
		if err == nil {
			return s.snapshot(ctx, existing), nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return Snapshot{}, err
		}
	}
	if in.channelCount() != 1 {
		return Snapshot{}, ErrChannelRequired
	}

	cfg := s.walletConfig(ctx, in.OwnerID, in.WalletID)
	switch {
	case in.Invoice != "":
		return s.withdrawLightning(ctx, in, cfg)
	case in.Lnurl:
		return s.withdrawLnurl(ctx, in, cfg)
	default:
		return s.withdrawOfframp(ctx, in, cfg)
	}
}

func (s *Service) withdrawLightning(ctx context.Context, in WithdrawInput, cfg *ledger.WalletConfig) (Snapshot, error) {
	dec, err := s.node.Decode(ctx, in.Invoice)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
	}
	now := time.Now().UTC()
	penalty := penaltyMsats(cfg, dec.AmountMsats, now)
	total := dec.AmountMsats + penalty

	meta := s.meta(ctx, in.OwnerID, in.WalletID)
	if total > meta.CurrentBalanceMsats {
		return Snapshot{}, ledger.ErrInsufficientFunds
	}

	tx := s.newWithdrawRow(in, ledger.ChannelLightning, total, 0, now)
	tx.Payload = &ledger.PaymentPayload{
		Kind:    ledger.PayloadInvoice,
		Invoice: &ledger.InvoicePayload{Invoice: in.Invoice},
	}
	if err := s.store.CreateReserved(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.payReserved(ctx, tx, in.Invoice, total)
}

func (s *Service) withdrawLnurl(ctx context.Context, in WithdrawInput, cfg *ledger.WalletConfig) (Snapshot, error) {
	now := time.Now().UTC()
	if lockActive(cfg, now) {
		// a shareable withdraw point cannot carry the early-withdrawal
		// penalty, so locked wallets reject this channel until lock end
		return Snapshot{}, ErrStateConflict
	}
	_, msats, fiat, err := s.resolveAmount(ctx, in.AmountFiat, in.AmountMsats)
	if err != nil {
		return Snapshot{}, err
	}

	meta := s.meta(ctx, in.OwnerID, in.WalletID)
	capMsats := msats
	if capMsats > meta.CurrentBalanceMsats {
		capMsats = meta.CurrentBalanceMsats
	}
	if capMsats <= 0 {
		return Snapshot{}, ledger.ErrInsufficientFunds
	}

	wp, err := s.node.CreateLnurlWithdrawPoint(ctx, capMsats, lnurlMinMsats, in.Reference)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
	}

	tx := s.newWithdrawRow(in, ledger.ChannelLnurl, capMsats, fiat, now)
	tx.PaymentTracker = wp.K1
	tx.Payload = &ledger.PaymentPayload{
		Kind: ledger.PayloadLnurlWithdraw,
		LnurlWithdraw: &ledger.LnurlWithdrawPayload{
			Lnurl:       wp.Lnurl,
			K1:          wp.K1,
			CallbackURL: wp.CallbackURL,
			MaxMsats:    wp.MaxMsats,
			MinMsats:    wp.MinMsats,
			ExpiresAt:   wp.ExpiresAt,
		},
	}
	if err := s.store.CreateReserved(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx), nil
}

func (s *Service) withdrawOfframp(ctx context.Context, in WithdrawInput, cfg *ledger.WalletConfig) (Snapshot, error) {
	q, msats, fiat, err := s.resolveAmount(ctx, in.AmountFiat, in.AmountMsats)
	if err != nil {
		return Snapshot{}, err
	}
	now := time.Now().UTC()
	penalty := penaltyMsats(cfg, msats, now)
	total := msats + penalty

	meta := s.meta(ctx, in.OwnerID, in.WalletID)
	if total > meta.CurrentBalanceMsats {
		return Snapshot{}, ledger.ErrInsufficientFunds
	}

	tx := s.newWithdrawRow(in, ledger.ChannelSwap, total, fiat, now)
	if err := s.store.CreateReserved(ctx, tx); err != nil {
		return Snapshot{}, err
	}

	sw, err := s.swaps.CreateOfframpSwap(ctx, q, msats, in.OfframpTarget, in.Reference)
	if err != nil {
		return s.failReserved(ctx, tx, err)
	}
	pay, err := s.node.Pay(ctx, sw.LightningInvoice)
	if err != nil {
		return s.failReserved(ctx, tx, err)
	}

	now = time.Now().UTC()
	tx.PaymentTracker = sw.ID
	tx.Payload = &ledger.PaymentPayload{
		Kind:    ledger.PayloadOfframp,
		Offramp: &ledger.OfframpPayload{SwapID: sw.ID, Invoice: sw.LightningInvoice},
	}
	tx.AmountMsats = total + pay.FeeMsats
	if err := tx.SetStatus(swapLedgerStatus(sw.Status), now); err != nil {
		s.logger.Warn("swap reported unexpected status", "tx_id", tx.ID, "status", sw.Status)
	}
	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx), nil
}

// ContinueWithdrawInput executes a previously accepted withdrawal over a
// channel, e.g. an approved chama withdrawal.
type ContinueWithdrawInput struct {
	OwnerID       string
	TxID          string
	AmountFiat    float64
	AmountMsats   int64
	Invoice       string
	Lnurl         bool
	OfframpTarget string
	Reference     string
}

// ContinueWithdraw executes a pending or approved withdrawal row over the
// selected channel. The row's current amount counts as already reserved;
// only the difference must fit the remaining balance.
func (s *Service) ContinueWithdraw(ctx context.Context, in ContinueWithdrawInput) (Snapshot, error) {
	tx, err := s.store.Get(ctx, in.TxID)
	if err != nil {
		return Snapshot{}, err
	}
	if tx.OwnerID != in.OwnerID {
		return Snapshot{}, ErrNotOwner
	}
	if tx.Type != ledger.TypeWithdraw {
		return Snapshot{}, ErrStateConflict
	}
	if tx.Status != ledger.StatusPending && tx.Status != ledger.StatusApproved {
		return Snapshot{}, ErrStateConflict
	}

	wi := WithdrawInput{Invoice: in.Invoice, Lnurl: in.Lnurl, OfframpTarget: in.OfframpTarget}
	if wi.channelCount() != 1 {
		return Snapshot{}, ErrChannelRequired
	}

	cfg := s.walletConfig(ctx, tx.OwnerID, tx.WalletID)
	now := time.Now().UTC()
	meta := s.meta(ctx, tx.OwnerID, tx.WalletID)
	headroom := meta.CurrentBalanceMsats + tx.AmountMsats

	switch {
	case in.Invoice != "":
		dec, err := s.node.Decode(ctx, in.Invoice)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
		}
		total := dec.AmountMsats + penaltyMsats(cfg, dec.AmountMsats, now)
		if total > headroom {
			return Snapshot{}, ledger.ErrInsufficientFunds
		}
		tx.AmountMsats = total
		tx.Channel = ledger.ChannelLightning
		tx.Payload = &ledger.PaymentPayload{
			Kind:    ledger.PayloadInvoice,
			Invoice: &ledger.InvoicePayload{Invoice: in.Invoice},
		}
		if err := s.store.Update(ctx, tx); err != nil {
			return Snapshot{}, err
		}
		return s.payReserved(ctx, tx, in.Invoice, total)

	case in.Lnurl:
		if lockActive(cfg, now) {
			return Snapshot{}, ErrStateConflict
		}
		msats := in.AmountMsats
		if msats == 0 && in.AmountFiat == 0 {
			msats = tx.AmountMsats
		} else {
			_, msats, _, err = s.resolveAmount(ctx, in.AmountFiat, msats)
			if err != nil {
				return Snapshot{}, err
			}
		}
		capMsats := msats
		if capMsats > headroom {
			capMsats = headroom
		}
		if capMsats <= 0 {
			return Snapshot{}, ledger.ErrInsufficientFunds
		}
		wp, err := s.node.CreateLnurlWithdrawPoint(ctx, capMsats, lnurlMinMsats, in.Reference)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, err)
		}
		tx.AmountMsats = capMsats
		tx.Channel = ledger.ChannelLnurl
		tx.PaymentTracker = wp.K1
		tx.Payload = &ledger.PaymentPayload{
			Kind: ledger.PayloadLnurlWithdraw,
			LnurlWithdraw: &ledger.LnurlWithdrawPayload{
				Lnurl:       wp.Lnurl,
				K1:          wp.K1,
				CallbackURL: wp.CallbackURL,
				MaxMsats:    wp.MaxMsats,
				MinMsats:    wp.MinMsats,
				ExpiresAt:   wp.ExpiresAt,
			},
		}
		tx.UpdatedAt = now
		if err := s.store.Update(ctx, tx); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, tx), nil

	default:
		q, msats, fiat, err := s.resolveAmount(ctx, in.AmountFiat, in.AmountMsats)
		if errors.Is(err, ErrAmountRequired) && in.AmountFiat == 0 && in.AmountMsats == 0 {
			msats = tx.AmountMsats
			fiat = tx.AmountFiat
			q, err = s.quote(ctx)
		}
		if err != nil {
			return Snapshot{}, err
		}
		total := msats + penaltyMsats(cfg, msats, now)
		if total > headroom {
			return Snapshot{}, ledger.ErrInsufficientFunds
		}
		sw, err := s.swaps.CreateOfframpSwap(ctx, q, msats, in.OfframpTarget, in.Reference)
		if err != nil {
			return s.failReserved(ctx, tx, err)
		}
		pay, err := s.node.Pay(ctx, sw.LightningInvoice)
		if err != nil {
			return s.failReserved(ctx, tx, err)
		}
		tx.AmountMsats = total + pay.FeeMsats
		tx.AmountFiat = fiat
		tx.Channel = ledger.ChannelSwap
		tx.PaymentTracker = sw.ID
		tx.Payload = &ledger.PaymentPayload{
			Kind:    ledger.PayloadOfframp,
			Offramp: &ledger.OfframpPayload{SwapID: sw.ID, Invoice: sw.LightningInvoice},
		}
		if err := tx.SetStatus(swapLedgerStatus(sw.Status), time.Now().UTC()); err != nil {
			s.logger.Warn("swap reported unexpected status", "tx_id", tx.ID, "status", sw.Status)
		}
		if err := s.store.Update(ctx, tx); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, tx), nil
	}
}

// UpdateTransaction applies a validated status change to a row.
func (s *Service) UpdateTransaction(ctx context.Context, ownerID, txID string, status ledger.Status) (Snapshot, error) {
	tx, err := s.store.Get(ctx, txID)
	if err != nil {
		return Snapshot{}, err
	}
	if ownerID != "" && tx.OwnerID != ownerID {
		return Snapshot{}, ErrNotOwner
	}
	if err := tx.SetStatus(status, time.Now().UTC()); err != nil {
		return Snapshot{}, err
	}
	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx), nil
}

// FindTransaction fetches a single row, scoped to an owner when given.
func (s *Service) FindTransaction(ctx context.Context, ownerID, txID string) (ledger.Transaction, error) {
	tx, err := s.store.Get(ctx, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if ownerID != "" && tx.OwnerID != ownerID {
		return ledger.Transaction{}, ErrNotOwner
	}
	return tx, nil
}

// FilterTransactions lists a page of rows matching the filter.
func (s *Service) FilterTransactions(ctx context.Context, f ledger.Filter) (ledger.Page, error) {
	return s.store.List(ctx, f)
}

// payReserved pays an invoice against an already reserved row, marking it
// complete with the routing fee folded in, or failed on a rail error. No
// withdrawal is left indefinitely pending on this path.
func (s *Service) payReserved(ctx context.Context, tx ledger.Transaction, invoice string, baseMsats int64) (Snapshot, error) {
	pay, err := s.node.Pay(ctx, invoice)
	if err != nil {
		return s.failReserved(ctx, tx, err)
	}
	now := time.Now().UTC()
	tx.AmountMsats = baseMsats + pay.FeeMsats
	if tx.Payload != nil && tx.Payload.Invoice != nil {
		tx.Payload.Invoice.OperationID = pay.OperationID
	}
	if tx.PaymentTracker == "" {
		tx.PaymentTracker = pay.OperationID
	}
	if err := tx.SetStatus(ledger.StatusComplete, now); err != nil {
		return Snapshot{}, err
	}
	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx), nil
}

// failReserved marks a reserved row failed after a rail error and surfaces
// the error. The failure releases the reservation.
func (s *Service) failReserved(ctx context.Context, tx ledger.Transaction, cause error) (Snapshot, error) {
	now := time.Now().UTC()
	if err := tx.SetStatus(ledger.StatusFailed, now); err == nil {
		if uerr := s.store.Update(ctx, tx); uerr != nil {
			s.logger.Error("failed to mark transaction failed", "tx_id", tx.ID, "error", uerr)
		}
	}
	return Snapshot{}, fmt.Errorf("%w: %v", ErrRail, cause)
}

func (s *Service) newWithdrawRow(in WithdrawInput, ch ledger.Channel, amountMsats int64, amountFiat float64, now time.Time) ledger.Transaction {
	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		MemberID:       in.MemberID,
		WalletID:       in.WalletID,
		Type:           ledger.TypeWithdraw,
		Channel:        ch,
		AmountMsats:    amountMsats,
		AmountFiat:     amountFiat,
		Reference:      in.Reference,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	stampStatus(&tx, ledger.StatusPending, now)
	return tx
}

// quote fetches a fiat->BTC rate offer.
func (s *Service) quote(ctx context.Context) (swap.Quote, error) {
	q, err := s.swaps.GetQuote(ctx, s.currency, "BTC")
	if err != nil {
		return swap.Quote{}, fmt.Errorf("%w: %v", ErrRail, err)
	}
	return q, nil
}

// resolveAmount validates that exactly one amount field is set and fills
// in the other via a fresh quote.
func (s *Service) resolveAmount(ctx context.Context, fiat float64, msats int64) (swap.Quote, int64, float64, error) {
	if (fiat > 0) == (msats > 0) {
		return swap.Quote{}, 0, 0, ErrAmountRequired
	}
	q, err := s.quote(ctx)
	if err != nil {
		return swap.Quote{}, 0, 0, err
	}
	if msats > 0 {
		return q, msats, swap.MsatsToFiat(msats, q.Rate), nil
	}
	return q, swap.FiatToMsats(fiat, q.Rate), fiat, nil
}

// ResolveAmount validates that exactly one amount field is set and fills
// in the other at the current quoted rate. Used by callers that record
// rows before a channel is chosen, e.g. group withdrawals awaiting
// approval.
func (s *Service) ResolveAmount(ctx context.Context, fiat float64, msats int64) (int64, float64, error) {
	_, m, f, err := s.resolveAmount(ctx, fiat, msats)
	return m, f, err
}

// meta aggregates the wallet balance view, degrading to zero on store
// errors: balance reads prefer availability over strictness.
func (s *Service) meta(ctx context.Context, ownerID, walletID string) ledger.Meta {
	meta, err := s.store.WalletMeta(ctx, ownerID, walletID)
	if err != nil {
		s.logger.Error("wallet meta aggregation failed", "owner_id", ownerID, "wallet_id", walletID, "error", err)
		return ledger.Meta{}
	}
	return meta
}

func (s *Service) snapshot(ctx context.Context, tx ledger.Transaction) Snapshot {
	page, err := s.store.List(ctx, ledger.Filter{OwnerID: tx.OwnerID, WalletID: tx.WalletID, Size: snapshotPageSize})
	if err != nil {
		s.logger.Error("ledger listing failed", "owner_id", tx.OwnerID, "error", err)
		page = ledger.Page{Size: snapshotPageSize}
	}
	return Snapshot{
		TxID:   tx.ID,
		Ledger: page,
		Meta:   s.meta(ctx, tx.OwnerID, tx.WalletID),
	}
}

// stampStatus sets the initial status on a new row, including its timeout
// deadline. Unlike SetStatus it performs no transition validation.
func stampStatus(tx *ledger.Transaction, status ledger.Status, now time.Time) {
	tx.Status = status
	tx.StateChangedAt = now
	tx.UpdatedAt = now
	if d, ok := ledger.TimeoutFor(status, tx.Channel); ok {
		deadline := now.Add(d)
		tx.TimeoutAt = &deadline
	} else {
		tx.TimeoutAt = nil
	}
}

// swapLedgerStatus maps provider swap statuses onto transaction statuses.
func swapLedgerStatus(st swap.Status) ledger.Status {
	switch st {
	case swap.StatusProcessing:
		return ledger.StatusProcessing
	case swap.StatusComplete:
		return ledger.StatusComplete
	case swap.StatusFailed:
		return ledger.StatusFailed
	default:
		return ledger.StatusPending
	}
}

func depositMemo(walletID, reference string) string {
	if reference != "" {
		return reference
	}
	return "deposit to wallet " + walletID
}
