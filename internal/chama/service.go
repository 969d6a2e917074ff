package chama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/notification"
	"github.com/pesabit/pesabit/internal/wallet"
)

var (
	// ErrNotMember indicates the caller does not belong to the chama.
	ErrNotMember = errors.New("not a member of this chama")

	// ErrNotAdmin indicates a review from a caller without the admin role.
	ErrNotAdmin = errors.New("not an admin of this chama")
)

// bulkMetaConcurrency bounds parallel chama aggregations in bulk reads.
const bulkMetaConcurrency = 8

// Service is the chama engine. Chama rows share the ledger with solo
// rows: OwnerID and WalletID both carry the chama id and MemberID the
// acting member. Channel execution is delegated to the solo engine once
// a withdrawal is approved.
type Service struct {
	store     ledger.Store
	wallets   *wallet.Service
	directory Directory
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService builds the chama engine and registers it for payment events.
func NewService(store ledger.Store, wallets *wallet.Service, directory Directory, notifier notification.Notifier, router *events.Router, logger *slog.Logger) *Service {
	s := &Service{
		store:     store,
		wallets:   wallets,
		directory: directory,
		notifier:  notifier,
		logger:    logger,
	}
	router.Register(events.EngineChama, s)
	return s
}

// Snapshot is the result shape of chama engine calls: the affected row,
// a page of the chama ledger, and the group balance.
type Snapshot struct {
	TxID   string      `json:"tx_id"`
	Ledger ledger.Page `json:"ledger"`
	Meta   ledger.Meta `json:"meta"`
}

// DepositInput starts a member contribution into the chama wallet.
type DepositInput struct {
	ChamaID      string
	MemberID     string
	AmountFiat   float64
	AmountMsats  int64
	OnrampTarget string
	Reference    string
}

// Deposit records a member contribution. Invoice issuance and settlement
// run through the solo engine against the shared ledger.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (Snapshot, error) {
	group, err := s.directory.FindGroup(ctx, in.ChamaID)
	if err != nil {
		return Snapshot{}, err
	}
	if !group.IsMember(in.MemberID) {
		return Snapshot{}, ErrNotMember
	}
	snap, err := s.wallets.Deposit(ctx, wallet.DepositInput{
		OwnerID:      in.ChamaID,
		MemberID:     in.MemberID,
		WalletID:     in.ChamaID,
		AmountFiat:   in.AmountFiat,
		AmountMsats:  in.AmountMsats,
		OnrampTarget: in.OnrampTarget,
		Reference:    in.Reference,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, snap.TxID, in.ChamaID), nil
}

// WithdrawInput requests a withdrawal from the chama wallet. No channel
// is chosen yet: execution happens via ContinueWithdraw once approved.
type WithdrawInput struct {
	ChamaID        string
	MemberID       string
	AmountFiat     float64
	AmountMsats    int64
	IdempotencyKey string
	Reference      string
}

// Withdraw records a withdrawal request and reserves its amount. An
// admin's own request carries an implicit approval; every pending request
// notifies the remaining admins. A repeated idempotency key returns the
// original row without a second reservation.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (Snapshot, error) {
	if in.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, in.ChamaID, ledger.TypeWithdraw, in.IdempotencyKey)
		if err == nil {
			return s.snapshot(ctx, existing.ID, in.ChamaID), nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return Snapshot{}, err
		}
	}

	group, err := s.directory.FindGroup(ctx, in.ChamaID)
	if err != nil {
		return Snapshot{}, err
	}
	if !group.IsMember(in.MemberID) {
		return Snapshot{}, ErrNotMember
	}

	msats, fiat, err := s.wallets.ResolveAmount(ctx, in.AmountFiat, in.AmountMsats)
	if err != nil {
		return Snapshot{}, err
	}

	admins := group.Admins()
	now := time.Now().UTC()
	var reviews []ledger.Review
	if group.IsAdmin(in.MemberID) {
		reviews = []ledger.Review{{ReviewerID: in.MemberID, Decision: ledger.DecisionApprove, CreatedAt: now}}
	}
	status := ledger.StatusFromReviews(reviews, len(admins))

	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		OwnerID:        in.ChamaID,
		MemberID:       in.MemberID,
		WalletID:       in.ChamaID,
		Type:           ledger.TypeWithdraw,
		Status:         status,
		AmountMsats:    msats,
		AmountFiat:     fiat,
		Reference:      in.Reference,
		IdempotencyKey: in.IdempotencyKey,
		Reviews:        reviews,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateReserved(ctx, tx); err != nil {
		return Snapshot{}, err
	}

	if status == ledger.StatusPending {
		s.notifyAdmins(ctx, group, tx)
	}
	return s.snapshot(ctx, tx.ID, in.ChamaID), nil
}

// UpdateReviews records an admin's decision on a pending withdrawal and
// recomputes its status against the current admin set. A later decision
// from the same admin replaces the earlier one.
func (s *Service) UpdateReviews(ctx context.Context, chamaID, txID, reviewerID string, decision ledger.Decision) (Snapshot, error) {
	if decision != ledger.DecisionApprove && decision != ledger.DecisionReject {
		return Snapshot{}, fmt.Errorf("%w: unknown decision %q", wallet.ErrStateConflict, decision)
	}

	tx, err := s.store.Get(ctx, txID)
	if err != nil {
		return Snapshot{}, err
	}
	if tx.OwnerID != chamaID {
		return Snapshot{}, wallet.ErrNotOwner
	}
	if tx.Type != ledger.TypeWithdraw || tx.Status != ledger.StatusPending {
		return Snapshot{}, wallet.ErrStateConflict
	}

	group, err := s.directory.FindGroup(ctx, chamaID)
	if err != nil {
		return Snapshot{}, err
	}
	if !group.IsAdmin(reviewerID) {
		return Snapshot{}, ErrNotAdmin
	}

	now := time.Now().UTC()
	replaced := false
	for i := range tx.Reviews {
		if tx.Reviews[i].ReviewerID == reviewerID {
			tx.Reviews[i].Decision = decision
			tx.Reviews[i].CreatedAt = now
			replaced = true
			break
		}
	}
	if !replaced {
		tx.Reviews = append(tx.Reviews, ledger.Review{ReviewerID: reviewerID, Decision: decision, CreatedAt: now})
	}

	next := ledger.StatusFromReviews(tx.Reviews, len(group.Admins()))
	if next != tx.Status {
		if err := tx.SetStatus(next, now); err != nil {
			return Snapshot{}, err
		}
	} else {
		tx.UpdatedAt = now
	}
	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, tx.ID, chamaID), nil
}

// ContinueWithdrawInput executes an approved chama withdrawal over a
// channel.
type ContinueWithdrawInput struct {
	ChamaID       string
	MemberID      string
	TxID          string
	Invoice       string
	Lnurl         bool
	OfframpTarget string
	Reference     string
}

// ContinueWithdraw executes an approved withdrawal by delegating channel
// orchestration to the solo engine. Pending and rejected rows are refused:
// chama funds move only after a majority approval.
func (s *Service) ContinueWithdraw(ctx context.Context, in ContinueWithdrawInput) (Snapshot, error) {
	tx, err := s.store.Get(ctx, in.TxID)
	if err != nil {
		return Snapshot{}, err
	}
	if tx.OwnerID != in.ChamaID {
		return Snapshot{}, wallet.ErrNotOwner
	}
	if tx.Status != ledger.StatusApproved {
		return Snapshot{}, wallet.ErrStateConflict
	}

	group, err := s.directory.FindGroup(ctx, in.ChamaID)
	if err != nil {
		return Snapshot{}, err
	}
	if !group.IsMember(in.MemberID) {
		return Snapshot{}, ErrNotMember
	}

	snap, err := s.wallets.ContinueWithdraw(ctx, wallet.ContinueWithdrawInput{
		OwnerID:       in.ChamaID,
		TxID:          in.TxID,
		Invoice:       in.Invoice,
		Lnurl:         in.Lnurl,
		OfframpTarget: in.OfframpTarget,
		Reference:     in.Reference,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, snap.TxID, in.ChamaID), nil
}

// GroupMetaView is the aggregated balance view of one chama.
type GroupMetaView struct {
	ChamaID string                 `json:"chama_id"`
	Group   ledger.Meta            `json:"group"`
	Members map[string]ledger.Meta `json:"members,omitempty"`
}

// AggregateGroupMeta computes the group balance and, unless skipped, each
// member's share. An empty member selection means every group member.
func (s *Service) AggregateGroupMeta(ctx context.Context, chamaID string, selectMembers []string, skipMemberMeta bool) (GroupMetaView, error) {
	group, err := s.directory.FindGroup(ctx, chamaID)
	if err != nil {
		return GroupMetaView{}, err
	}

	view := GroupMetaView{ChamaID: chamaID}
	view.Group, err = s.store.GroupMeta(ctx, chamaID)
	if err != nil {
		return GroupMetaView{}, err
	}
	if skipMemberMeta {
		return view, nil
	}

	members := selectMembers
	if len(members) == 0 {
		for _, m := range group.Members {
			members = append(members, m.UserID)
		}
	}
	view.Members = make(map[string]ledger.Meta, len(members))
	for _, memberID := range members {
		meta, err := s.store.MemberMeta(ctx, chamaID, memberID)
		if err != nil {
			return GroupMetaView{}, err
		}
		view.Members[memberID] = meta
	}
	return view, nil
}

// AggregateBulkGroupMeta aggregates group balances for many chamas in
// parallel. A failing chama degrades to a zero view instead of failing
// the whole read: bulk dashboards prefer availability.
func (s *Service) AggregateBulkGroupMeta(ctx context.Context, chamaIDs []string) (map[string]GroupMetaView, error) {
	results := make([]GroupMetaView, len(chamaIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkMetaConcurrency)
	for i, chamaID := range chamaIDs {
		i, chamaID := i, chamaID
		g.Go(func() error {
			view, err := s.AggregateGroupMeta(ctx, chamaID, nil, true)
			if err != nil {
				s.logger.Error("group meta aggregation failed", "chama_id", chamaID, "error", err)
				view = GroupMetaView{ChamaID: chamaID}
			}
			results[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make(map[string]GroupMetaView, len(results))
	for _, v := range results {
		views[v.ChamaID] = v
	}
	return views, nil
}

// notifyAdmins asks each admin other than the initiator to review a
// withdrawal. Delivery is fire-and-forget.
func (s *Service) notifyAdmins(ctx context.Context, group Group, tx ledger.Transaction) {
	for _, admin := range group.Admins() {
		if admin == tx.MemberID {
			continue
		}
		err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindWithdrawalApproval,
			Destination: admin,
			Body:        fmt.Sprintf("withdrawal %s of %d msats from chama %s awaits your review", tx.ID, tx.AmountMsats, group.ID),
		})
		if err != nil {
			s.logger.Warn("admin notification failed", "chama_id", group.ID, "admin", admin, "error", err)
		}
	}
}

func (s *Service) snapshot(ctx context.Context, txID, chamaID string) Snapshot {
	page, err := s.store.List(ctx, ledger.Filter{OwnerID: chamaID, Size: 20})
	if err != nil {
		s.logger.Error("chama ledger listing failed", "chama_id", chamaID, "error", err)
		page = ledger.Page{Size: 20}
	}
	meta, err := s.store.GroupMeta(ctx, chamaID)
	if err != nil {
		s.logger.Error("group meta aggregation failed", "chama_id", chamaID, "error", err)
		meta = ledger.Meta{}
	}
	return Snapshot{TxID: txID, Ledger: page, Meta: meta}
}
