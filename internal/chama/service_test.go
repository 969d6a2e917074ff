package chama

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/logging"
	"github.com/pesabit/pesabit/internal/notification"
	"github.com/pesabit/pesabit/internal/rail"
	"github.com/pesabit/pesabit/internal/swap"
	"github.com/pesabit/pesabit/internal/wallet"
)

const testRate = 10_000_000

type fixture struct {
	svc       *Service
	store     ledger.Store
	node      *rail.StaticNode
	directory *StaticDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	logger := logging.Discard()
	router := events.NewRouter(logger)
	node := rail.NewStaticNode(router)
	walletSvc := wallet.NewService(store, node, swap.NewStaticSwapper(testRate), router, "KES", logger)
	directory := NewStaticDirectory()
	svc := NewService(store, walletSvc, directory, notification.NewLoggerNotifier(logger), router, logger)
	return &fixture{svc: svc, store: store, node: node, directory: directory}
}

func admin(id string) Member  { return Member{UserID: id, Roles: []Role{RoleAdmin}} }
func member(id string) Member { return Member{UserID: id, Roles: []Role{RoleMember}} }

func (f *fixture) seedChama(t *testing.T, g Group, balanceMsats int64) {
	t.Helper()
	f.directory.AddGroup(g)
	if balanceMsats > 0 {
		ledger.SeedDeposit(f.store, g.ID, g.ID, balanceMsats)
	}
}

func TestWithdrawApprovalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{
		ID:      chamaID,
		Members: []Member{admin("a1"), admin("a2"), admin("a3"), member("m1")},
	}, 100_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "m1", AmountMsats: 40_000})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	if tx.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", tx.Status)
	}
	if snap.Meta.ReservedMsats != 40_000 {
		t.Fatalf("reserved = %d, want 40000", snap.Meta.ReservedMsats)
	}

	// one of three approvals is not a majority
	snap, err = f.svc.UpdateReviews(ctx, chamaID, tx.ID, "a1", ledger.DecisionApprove)
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	mid, _ := f.store.Get(ctx, snap.TxID)
	if mid.Status != ledger.StatusPending {
		t.Fatalf("status after one approval = %s, want pending", mid.Status)
	}

	snap, err = f.svc.UpdateReviews(ctx, chamaID, tx.ID, "a2", ledger.DecisionApprove)
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	approved, _ := f.store.Get(ctx, snap.TxID)
	if approved.Status != ledger.StatusApproved {
		t.Fatalf("status after majority = %s, want approved", approved.Status)
	}
	if len(approved.Reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(approved.Reviews))
	}

	// approved funds stay reserved until execution
	meta, _ := f.store.GroupMeta(ctx, chamaID)
	if meta.ReservedMsats != 40_000 {
		t.Fatalf("approved reservation released: %d", meta.ReservedMsats)
	}

	snap, err = f.svc.ContinueWithdraw(ctx, ContinueWithdrawInput{
		ChamaID: chamaID, MemberID: "m1", TxID: tx.ID, Invoice: rail.EncodeInvoice(40_000),
	})
	if err != nil {
		t.Fatalf("continue withdraw: %v", err)
	}
	done, _ := f.store.Get(ctx, snap.TxID)
	if done.Status != ledger.StatusComplete || done.AmountMsats != 40_050 {
		t.Fatalf("status=%s amount=%d, want complete/40050", done.Status, done.AmountMsats)
	}
}

func TestAdminWithdrawAutoApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), member("m1")}}, 50_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "a1", AmountMsats: 10_000})
	if err != nil {
		t.Fatalf("admin withdraw: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	// one admin, threshold one, implicit self-approval
	if tx.Status != ledger.StatusApproved {
		t.Fatalf("status = %s, want approved", tx.Status)
	}
	if len(tx.Reviews) != 1 || tx.Reviews[0].ReviewerID != "a1" {
		t.Fatalf("missing implicit review: %+v", tx.Reviews)
	}
}

func TestWithdrawRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), admin("a2"), admin("a3"), member("m1")}}, 50_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "m1", AmountMsats: 20_000})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	txID := snap.TxID

	if _, err := f.svc.UpdateReviews(ctx, chamaID, txID, "a1", ledger.DecisionReject); err != nil {
		t.Fatalf("first rejection: %v", err)
	}
	snap, err = f.svc.UpdateReviews(ctx, chamaID, txID, "a2", ledger.DecisionReject)
	if err != nil {
		t.Fatalf("second rejection: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	// two of three rejected: a majority approval is unreachable
	if tx.Status != ledger.StatusRejected {
		t.Fatalf("status = %s, want rejected", tx.Status)
	}

	meta, _ := f.store.GroupMeta(ctx, chamaID)
	if meta.ReservedMsats != 0 || meta.CurrentBalanceMsats != 50_000 {
		t.Fatalf("rejection must release the reservation: %+v", meta)
	}

	// rejected rows accept no further reviews or execution
	if _, err := f.svc.UpdateReviews(ctx, chamaID, txID, "a3", ledger.DecisionApprove); !errors.Is(err, wallet.ErrStateConflict) {
		t.Fatalf("review on rejected row: got %v", err)
	}
	if _, err := f.svc.ContinueWithdraw(ctx, ContinueWithdrawInput{ChamaID: chamaID, MemberID: "m1", TxID: txID, Invoice: rail.EncodeInvoice(1_000)}); !errors.Is(err, wallet.ErrStateConflict) {
		t.Fatalf("continue on rejected row: got %v", err)
	}
}

func TestReviewReplacesEarlierDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), admin("a2"), admin("a3"), member("m1")}}, 50_000)

	snap, _ := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "m1", AmountMsats: 5_000})
	txID := snap.TxID

	if _, err := f.svc.UpdateReviews(ctx, chamaID, txID, "a1", ledger.DecisionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.UpdateReviews(ctx, chamaID, txID, "a1", ledger.DecisionApprove); err != nil {
		t.Fatalf("flip to approve: %v", err)
	}
	tx, _ := f.store.Get(ctx, txID)
	if len(tx.Reviews) != 1 || tx.Reviews[0].Decision != ledger.DecisionApprove {
		t.Fatalf("decision not replaced: %+v", tx.Reviews)
	}
}

func TestReviewAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), member("m1"), member("m2")}}, 50_000)

	snap, _ := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "m1", AmountMsats: 5_000})

	if _, err := f.svc.UpdateReviews(ctx, chamaID, snap.TxID, "m2", ledger.DecisionApprove); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin review: got %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: chamaID, MemberID: "stranger", AmountMsats: 5_000}); !errors.Is(err, ErrNotMember) {
		t.Fatalf("stranger withdrawal: got %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, WithdrawInput{ChamaID: uuid.NewString(), MemberID: "m1", AmountMsats: 5_000}); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("unknown chama: got %v", err)
	}
}

func TestWithdrawIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1")}}, 50_000)

	in := WithdrawInput{ChamaID: chamaID, MemberID: "a1", AmountMsats: 10_000, IdempotencyKey: "once"}
	first, err := f.svc.Withdraw(ctx, in)
	if err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	second, err := f.svc.Withdraw(ctx, in)
	if err != nil {
		t.Fatalf("replayed withdraw: %v", err)
	}
	if first.TxID != second.TxID {
		t.Fatalf("idempotency key produced two rows")
	}
	meta, _ := f.store.GroupMeta(ctx, chamaID)
	if meta.ReservedMsats != 10_000 {
		t.Fatalf("reserved = %d, want a single 10000 reservation", meta.ReservedMsats)
	}
}

func TestDepositAttributesMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), member("m1")}}, 0)

	snap, err := f.svc.Deposit(ctx, DepositInput{ChamaID: chamaID, MemberID: "m1", AmountMsats: 30_000})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	if tx.OwnerID != chamaID || tx.WalletID != chamaID || tx.MemberID != "m1" {
		t.Fatalf("row attribution: %+v", tx)
	}

	f.node.SettleReceive(ctx, tx.PaymentTracker, true, "")

	memberMeta, err := f.store.MemberMeta(ctx, chamaID, "m1")
	if err != nil {
		t.Fatalf("member meta: %v", err)
	}
	if memberMeta.TotalDepositsMsats != 30_000 {
		t.Fatalf("member deposits = %d, want 30000", memberMeta.TotalDepositsMsats)
	}
}

func TestAggregateGroupMeta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chamaID := uuid.NewString()
	f.seedChama(t, Group{ID: chamaID, Members: []Member{admin("a1"), member("m1")}}, 0)

	deposit := func(memberID string, msats int64) {
		snap, err := f.svc.Deposit(ctx, DepositInput{ChamaID: chamaID, MemberID: memberID, AmountMsats: msats})
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		tx, _ := f.store.Get(ctx, snap.TxID)
		f.node.SettleReceive(ctx, tx.PaymentTracker, true, "")
	}
	deposit("a1", 60_000)
	deposit("m1", 40_000)

	view, err := f.svc.AggregateGroupMeta(ctx, chamaID, nil, false)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if view.Group.CurrentBalanceMsats != 100_000 {
		t.Fatalf("group balance = %d, want 100000", view.Group.CurrentBalanceMsats)
	}
	if view.Members["a1"].TotalDepositsMsats != 60_000 || view.Members["m1"].TotalDepositsMsats != 40_000 {
		t.Fatalf("member shares: %+v", view.Members)
	}

	skipped, err := f.svc.AggregateGroupMeta(ctx, chamaID, nil, true)
	if err != nil {
		t.Fatalf("aggregate skip members: %v", err)
	}
	if skipped.Members != nil {
		t.Fatalf("member metas not skipped")
	}

	one, err := f.svc.AggregateGroupMeta(ctx, chamaID, []string{"m1"}, false)
	if err != nil {
		t.Fatalf("aggregate selected: %v", err)
	}
	if len(one.Members) != 1 {
		t.Fatalf("selected members = %d, want 1", len(one.Members))
	}
}

func TestAggregateBulkGroupMetaIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := uuid.NewString()
	f.seedChama(t, Group{ID: good, Members: []Member{admin("a1")}}, 75_000)
	missing := uuid.NewString()

	views, err := f.svc.AggregateBulkGroupMeta(ctx, []string{good, missing})
	if err != nil {
		t.Fatalf("bulk aggregate: %v", err)
	}
	if views[good].Group.CurrentBalanceMsats != 75_000 {
		t.Fatalf("good chama balance = %d, want 75000", views[good].Group.CurrentBalanceMsats)
	}
	// the unknown chama degrades to a zero view instead of failing the call
	if views[missing].Group.CurrentBalanceMsats != 0 {
		t.Fatalf("missing chama must degrade to zero, got %+v", views[missing])
	}
}
