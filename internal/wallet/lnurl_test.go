package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/rail"
)

func TestLnurlWithdrawFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, walletID := uuid.NewString(), uuid.NewString()
	ledger.SeedDeposit(f.store, owner, walletID, 100_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, WalletID: walletID, Lnurl: true, AmountMsats: 30_000})
	if err != nil {
		t.Fatalf("lnurl withdraw: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	if tx.Channel != ledger.ChannelLnurl || tx.Status != ledger.StatusPending {
		t.Fatalf("channel=%s status=%s, want lnurl/pending", tx.Channel, tx.Status)
	}
	if tx.Payload == nil || tx.Payload.LnurlWithdraw == nil {
		t.Fatalf("row carries no withdraw point")
	}
	if tx.PaymentTracker != tx.Payload.LnurlWithdraw.K1 {
		t.Fatalf("tracker must be the k1 secret")
	}
	if snap.Meta.ReservedMsats != 30_000 {
		t.Fatalf("reserved = %d, want 30000", snap.Meta.ReservedMsats)
	}

	// claim less than the cap
	res := f.svc.ProcessLnUrlWithdrawCallback(ctx, tx.PaymentTracker, rail.EncodeInvoice(20_000))
	if !res.OK {
		t.Fatalf("callback rejected: %s", res.Reason)
	}
	settled, _ := f.store.Get(ctx, snap.TxID)
	if settled.Status != ledger.StatusComplete {
		t.Fatalf("status = %s, want complete", settled.Status)
	}
	if settled.AmountMsats != 20_050 {
		t.Fatalf("amount = %d, want 20050 (claimed + fee)", settled.AmountMsats)
	}
	meta, _ := f.store.WalletMeta(ctx, owner, walletID)
	if meta.CurrentBalanceMsats != 79_950 {
		t.Fatalf("balance = %d, want 79950", meta.CurrentBalanceMsats)
	}

	// a second claim must be refused
	res = f.svc.ProcessLnUrlWithdrawCallback(ctx, tx.PaymentTracker, rail.EncodeInvoice(1_000))
	if res.OK || res.Reason != "withdraw request already processed" {
		t.Fatalf("second claim: %+v", res)
	}
}

func TestLnurlWithdrawCapsAtBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, walletID := uuid.NewString(), uuid.NewString()
	ledger.SeedDeposit(f.store, owner, walletID, 25_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, WalletID: walletID, Lnurl: true, AmountMsats: 90_000})
	if err != nil {
		t.Fatalf("lnurl withdraw: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	if tx.AmountMsats != 25_000 {
		t.Fatalf("cap = %d, want 25000", tx.AmountMsats)
	}
	if tx.Payload.LnurlWithdraw.MaxMsats != 25_000 {
		t.Fatalf("withdraw point max = %d, want 25000", tx.Payload.LnurlWithdraw.MaxMsats)
	}
}

func TestLnurlCallbackRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, walletID := uuid.NewString(), uuid.NewString()
	ledger.SeedDeposit(f.store, owner, walletID, 50_000)

	snap, err := f.svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, WalletID: walletID, Lnurl: true, AmountMsats: 10_000})
	if err != nil {
		t.Fatalf("lnurl withdraw: %v", err)
	}
	tx, _ := f.store.Get(ctx, snap.TxID)
	k1 := tx.PaymentTracker

	if res := f.svc.ProcessLnUrlWithdrawCallback(ctx, "", rail.EncodeInvoice(1_000)); res.OK {
		t.Fatalf("missing k1 accepted")
	}
	if res := f.svc.ProcessLnUrlWithdrawCallback(ctx, "nope", rail.EncodeInvoice(1_000)); res.OK {
		t.Fatalf("unknown k1 accepted")
	}
	if res := f.svc.ProcessLnUrlWithdrawCallback(ctx, k1, "garbage"); res.OK {
		t.Fatalf("undecodable invoice accepted")
	}
	if res := f.svc.ProcessLnUrlWithdrawCallback(ctx, k1, rail.EncodeInvoice(15_000)); res.OK {
		t.Fatalf("claim over cap accepted")
	}

	// expire the point
	tx.Payload.LnurlWithdraw.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := f.store.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if res := f.svc.ProcessLnUrlWithdrawCallback(ctx, k1, rail.EncodeInvoice(1_000)); res.OK || res.Reason != "withdraw request expired" {
		t.Fatalf("expired claim: %+v", res)
	}

	// all rejections leave the row pending and reserved
	after, _ := f.store.Get(ctx, snap.TxID)
	if after.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", after.Status)
	}
}
