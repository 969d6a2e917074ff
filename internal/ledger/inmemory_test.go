package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func withdrawRow(owner, wallet string, msats int64) Transaction {
	now := time.Now().UTC()
	return Transaction{
		ID:             uuid.NewString(),
		OwnerID:        owner,
		WalletID:       wallet,
		Type:           TypeWithdraw,
		Channel:        ChannelLightning,
		Status:         StatusPending,
		AmountMsats:    msats,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestWalletMetaFormula(t *testing.T) {
	s := NewInMemory()
	owner, wallet := uuid.NewString(), uuid.NewString()

	SeedDeposit(s, owner, wallet, 10_000)
	SeedDeposit(s, owner, wallet, 5_000)
	SeedWithdrawal(s, owner, wallet, 2_000, StatusComplete)
	SeedWithdrawal(s, owner, wallet, 1_000, StatusPending)
	SeedWithdrawal(s, owner, wallet, 500, StatusProcessing)
	SeedWithdrawal(s, owner, wallet, 250, StatusApproved)
	// failed and rejected rows count nowhere
	SeedWithdrawal(s, owner, wallet, 9_999, StatusFailed)
	SeedWithdrawal(s, owner, wallet, 9_999, StatusRejected)

	meta, err := s.WalletMeta(context.Background(), owner, wallet)
	if err != nil {
		t.Fatalf("wallet meta: %v", err)
	}
	if meta.TotalDepositsMsats != 15_000 {
		t.Fatalf("deposits = %d, want 15000", meta.TotalDepositsMsats)
	}
	if meta.TotalWithdrawalsMsats != 2_000 {
		t.Fatalf("withdrawals = %d, want 2000", meta.TotalWithdrawalsMsats)
	}
	if meta.ReservedMsats != 1_750 {
		t.Fatalf("reserved = %d, want 1750", meta.ReservedMsats)
	}
	if meta.CurrentBalanceMsats != 11_250 {
		t.Fatalf("balance = %d, want 11250", meta.CurrentBalanceMsats)
	}
}

func TestManualReviewDepositCounts(t *testing.T) {
	s := NewInMemory()
	owner, wallet := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()

	tx := Transaction{
		ID: uuid.NewString(), OwnerID: owner, WalletID: wallet,
		Type: TypeDeposit, Status: StatusManualReview, AmountMsats: 7_000,
		StateChangedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Create(context.Background(), tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	meta, _ := s.WalletMeta(context.Background(), owner, wallet)
	if meta.TotalDepositsMsats != 7_000 {
		t.Fatalf("manual_review deposit not counted: %d", meta.TotalDepositsMsats)
	}
}

func TestCreateReservedRejectsOverdraft(t *testing.T) {
	s := NewInMemory()
	owner, wallet := uuid.NewString(), uuid.NewString()
	SeedDeposit(s, owner, wallet, 1_000)

	if err := s.CreateReserved(context.Background(), withdrawRow(owner, wallet, 1_500)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := s.CreateReserved(context.Background(), withdrawRow(owner, wallet, 1_000)); err != nil {
		t.Fatalf("exact balance withdrawal: %v", err)
	}
	// the first reservation consumed the whole balance
	if err := s.CreateReserved(context.Background(), withdrawRow(owner, wallet, 1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds after reservation, got %v", err)
	}
}

func TestCreateReservedConcurrent(t *testing.T) {
	s := NewInMemory()
	owner, wallet := uuid.NewString(), uuid.NewString()
	SeedDeposit(s, owner, wallet, 1_000)

	const attempts = 50
	var wg sync.WaitGroup
	succeeded := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CreateReserved(context.Background(), withdrawRow(owner, wallet, 600)); err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	var wins int
	for range succeeded {
		wins++
	}
	if wins != 1 {
		t.Fatalf("%d concurrent withdrawals won, want exactly 1", wins)
	}

	meta, _ := s.WalletMeta(context.Background(), owner, wallet)
	if meta.CurrentBalanceMsats != 400 {
		t.Fatalf("balance = %d, want 400", meta.CurrentBalanceMsats)
	}
}

func TestListFilterAndPagination(t *testing.T) {
	s := NewInMemory()
	owner, wallet := uuid.NewString(), uuid.NewString()
	for i := 0; i < 25; i++ {
		SeedDeposit(s, owner, wallet, int64(i+1))
	}
	SeedDeposit(s, uuid.NewString(), uuid.NewString(), 99)

	page, err := s.List(context.Background(), Filter{OwnerID: owner, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 25 || page.Pages != 3 || len(page.Transactions) != 10 {
		t.Fatalf("page shape: total=%d pages=%d len=%d", page.Total, page.Pages, len(page.Transactions))
	}

	last, err := s.List(context.Background(), Filter{OwnerID: owner, Size: 10, Page: 2})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(last.Transactions) != 5 {
		t.Fatalf("last page len = %d, want 5", len(last.Transactions))
	}

	byType, err := s.List(context.Background(), Filter{OwnerID: owner, Type: TypeWithdraw})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if byType.Total != 0 {
		t.Fatalf("no withdrawals seeded, got %d", byType.Total)
	}
}

func TestFindByTrackerAndIdempotencyKey(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	owner := uuid.NewString()

	tx := withdrawRow(owner, uuid.NewString(), 100)
	tx.PaymentTracker = "op-1"
	tx.IdempotencyKey = "key-1"
	if err := s.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := s.FindByTracker(ctx, "op-1")
	if err != nil || found.ID != tx.ID {
		t.Fatalf("find by tracker: %v", err)
	}
	if _, err := s.FindByTracker(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty tracker must not match, got %v", err)
	}

	found, err = s.FindByIdempotencyKey(ctx, owner, TypeWithdraw, "key-1")
	if err != nil || found.ID != tx.ID {
		t.Fatalf("find by idempotency key: %v", err)
	}
	if _, err := s.FindByIdempotencyKey(ctx, owner, TypeDeposit, "key-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("key is scoped per type, got %v", err)
	}
}

func TestApplyTrackerIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	tx := withdrawRow(uuid.NewString(), uuid.NewString(), 100)
	tx.Type = TypeDeposit
	tx.PaymentTracker = "op-2"
	if err := s.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ApplyTracker(ctx, s, "op-2", StatusComplete, now); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	// redelivery must be rejected by the state machine
	if _, err := ApplyTracker(ctx, s, "op-2", StatusComplete, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on redelivery, got %v", err)
	}
	if _, err := ApplyTracker(ctx, s, "missing", StatusComplete, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
