package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/ledger"
)

// milestones are the target-wallet progress marks, in percent.
var milestones = []int{25, 50, 75, 100}

// CreateWalletInput configures a new wallet. A zero WalletID gets a fresh
// uuid. Target fields apply to target wallets, lock fields to locked ones.
type CreateWalletInput struct {
	OwnerID           string
	MemberID          string
	WalletID          string
	Type              ledger.WalletType
	TargetAmountMsats int64
	TargetAmountFiat  float64
	TargetDate        *time.Time
	LockPeriodDays    int
	AutoRenew         bool
	PenaltyRatePct    float64
	Reference         string
}

// CreateWallet records a wallet_creation row carrying the wallet's variant
// configuration. At most one live configuration exists per (owner, wallet).
func (s *Service) CreateWallet(ctx context.Context, in CreateWalletInput) (ledger.Transaction, error) {
	if in.OwnerID == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: owner id is required", ErrStateConflict)
	}
	if in.WalletID == "" {
		in.WalletID = uuid.NewString()
	}
	if in.Type == "" {
		in.Type = ledger.WalletStandard
	}

	cfg := ledger.WalletConfig{Type: in.Type}
	switch in.Type {
	case ledger.WalletStandard:
	case ledger.WalletTarget:
		if in.TargetAmountMsats <= 0 && in.TargetAmountFiat <= 0 {
			return ledger.Transaction{}, fmt.Errorf("%w: target wallet requires a target amount", ErrAmountRequired)
		}
		cfg.TargetAmountMsats = in.TargetAmountMsats
		cfg.TargetAmountFiat = in.TargetAmountFiat
		cfg.TargetDate = in.TargetDate
	case ledger.WalletLocked:
		if in.LockPeriodDays <= 0 {
			return ledger.Transaction{}, fmt.Errorf("%w: locked wallet requires a lock period", ErrStateConflict)
		}
		cfg.LockPeriodDays = in.LockPeriodDays
		cfg.AutoRenew = in.AutoRenew
		cfg.PenaltyRatePct = in.PenaltyRatePct
		end := time.Now().UTC().AddDate(0, 0, in.LockPeriodDays)
		cfg.LockEndDate = &end
	default:
		return ledger.Transaction{}, fmt.Errorf("%w: unknown wallet type %q", ErrStateConflict, in.Type)
	}

	if _, err := s.store.FindWalletConfig(ctx, in.OwnerID, in.WalletID); err == nil {
		return ledger.Transaction{}, ledger.ErrWalletExists
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return ledger.Transaction{}, err
	}

	now := time.Now().UTC()
	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		MemberID:       in.MemberID,
		WalletID:       in.WalletID,
		Type:           ledger.TypeWalletCreation,
		Status:         ledger.StatusComplete,
		Reference:      in.Reference,
		Wallet:         &cfg,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// ensureWallet backfills a standard wallet_creation row the first time a
// wallet id is deposited to, so every wallet has a configuration.
func (s *Service) ensureWallet(ctx context.Context, ownerID, memberID, walletID string) error {
	_, err := s.store.FindWalletConfig(ctx, ownerID, walletID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}
	_, err = s.CreateWallet(ctx, CreateWalletInput{
		OwnerID:  ownerID,
		MemberID: memberID,
		WalletID: walletID,
		Type:     ledger.WalletStandard,
	})
	if errors.Is(err, ledger.ErrWalletExists) {
		return nil
	}
	return err
}

// walletConfig fetches a wallet's configuration, or nil when none exists.
func (s *Service) walletConfig(ctx context.Context, ownerID, walletID string) *ledger.WalletConfig {
	tx, err := s.store.FindWalletConfig(ctx, ownerID, walletID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			s.logger.Error("wallet config lookup failed", "owner_id", ownerID, "wallet_id", walletID, "error", err)
		}
		return nil
	}
	return tx.Wallet
}

// TargetView is the progress view of a target wallet.
type TargetView struct {
	TargetAmountMsats int64      `json:"target_amount_msats"`
	TargetAmountFiat  float64    `json:"target_amount_fiat,omitempty"`
	TargetDate        *time.Time `json:"target_date,omitempty"`
	ProgressPct       int        `json:"progress_pct"`
	MilestonesReached []int      `json:"milestones_reached"`
}

// LockView is the lock state view of a locked wallet.
type LockView struct {
	LockPeriodDays int        `json:"lock_period_days"`
	LockEndDate    *time.Time `json:"lock_end_date,omitempty"`
	AutoRenew      bool       `json:"auto_renew"`
	PenaltyRatePct float64    `json:"penalty_rate_pct"`
	Locked         bool       `json:"locked"`
}

// MetaView is a wallet's balance with its variant overlay, when any.
type MetaView struct {
	WalletID string            `json:"wallet_id"`
	Type     ledger.WalletType `json:"type"`
	Meta     ledger.Meta       `json:"meta"`
	Target   *TargetView       `json:"target,omitempty"`
	Lock     *LockView         `json:"lock,omitempty"`
}

// GetWalletMeta returns the derived balance for one wallet, decorated with
// its target progress or lock state.
func (s *Service) GetWalletMeta(ctx context.Context, ownerID, walletID string) (MetaView, error) {
	meta := s.meta(ctx, ownerID, walletID)
	cfg := s.walletConfig(ctx, ownerID, walletID)
	now := time.Now().UTC()

	view := MetaView{WalletID: walletID, Type: ledger.WalletStandard, Meta: meta}
	if cfg == nil {
		return view, nil
	}
	view.Type = cfg.Type

	switch cfg.Type {
	case ledger.WalletTarget:
		view.Target = &TargetView{
			TargetAmountMsats: cfg.TargetAmountMsats,
			TargetAmountFiat:  cfg.TargetAmountFiat,
			TargetDate:        cfg.TargetDate,
			ProgressPct:       targetProgress(cfg, meta.CurrentBalanceMsats),
			MilestonesReached: append([]int(nil), cfg.MilestonesReached...),
		}
	case ledger.WalletLocked:
		end := effectiveLockEnd(cfg, now)
		view.Lock = &LockView{
			LockPeriodDays: cfg.LockPeriodDays,
			LockEndDate:    end,
			AutoRenew:      cfg.AutoRenew,
			PenaltyRatePct: cfg.PenaltyRatePct,
			Locked:         lockActive(cfg, now),
		}
	}
	return view, nil
}

// targetProgress is balance over target in percent, capped at 100.
func targetProgress(cfg *ledger.WalletConfig, balanceMsats int64) int {
	if cfg.TargetAmountMsats <= 0 {
		return 0
	}
	pct := int(balanceMsats * 100 / cfg.TargetAmountMsats)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// updateMilestones records newly crossed target milestones on the wallet's
// configuration row. Milestones are recorded once and never retracted,
// even if the balance later drops.
func (s *Service) updateMilestones(ctx context.Context, ownerID, walletID string) {
	cfgRow, err := s.store.FindWalletConfig(ctx, ownerID, walletID)
	if err != nil || cfgRow.Wallet == nil || cfgRow.Wallet.Type != ledger.WalletTarget {
		return
	}
	meta := s.meta(ctx, ownerID, walletID)
	pct := targetProgress(cfgRow.Wallet, meta.CurrentBalanceMsats)

	reached := map[int]bool{}
	for _, m := range cfgRow.Wallet.MilestonesReached {
		reached[m] = true
	}
	changed := false
	for _, m := range milestones {
		if pct >= m && !reached[m] {
			cfgRow.Wallet.MilestonesReached = append(cfgRow.Wallet.MilestonesReached, m)
			changed = true
			s.logger.Info("target milestone reached",
				"owner_id", ownerID, "wallet_id", walletID, "milestone_pct", m)
		}
	}
	if !changed {
		return
	}
	cfgRow.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, cfgRow); err != nil {
		s.logger.Error("milestone update failed", "wallet_id", walletID, "error", err)
	}
}

// effectiveLockEnd resolves a locked wallet's current lock boundary. With
// auto-renew the lock rolls forward by whole periods, so the boundary is
// always the end of the period containing now.
func effectiveLockEnd(cfg *ledger.WalletConfig, now time.Time) *time.Time {
	if cfg == nil || cfg.LockEndDate == nil {
		return nil
	}
	end := *cfg.LockEndDate
	if !now.Before(end) && cfg.AutoRenew && cfg.LockPeriodDays > 0 {
		period := time.Duration(cfg.LockPeriodDays) * 24 * time.Hour
		elapsed := now.Sub(end)
		periods := elapsed/period + 1
		end = end.Add(periods * period)
	}
	return &end
}

// lockActive reports whether withdrawals from the wallet are currently
// subject to the early-withdrawal penalty.
func lockActive(cfg *ledger.WalletConfig, now time.Time) bool {
	if cfg == nil || cfg.Type != ledger.WalletLocked {
		return false
	}
	end := effectiveLockEnd(cfg, now)
	return end != nil && now.Before(*end)
}

// penaltyMsats is the early-withdrawal penalty charged on top of the
// withdrawn amount while a lock is active.
func penaltyMsats(cfg *ledger.WalletConfig, amountMsats int64, now time.Time) int64 {
	if !lockActive(cfg, now) || cfg.PenaltyRatePct <= 0 {
		return 0
	}
	return int64(math.Round(float64(amountMsats) * cfg.PenaltyRatePct / 100))
}
