package swap

import (
	"context"
	"testing"
)

func TestConversionRoundTrip(t *testing.T) {
	// 10,000,000 KES per BTC: 1 KES = 10,000 msats
	const rate = 10_000_000

	if got := FiatToMsats(10, rate); got != 100_000 {
		t.Fatalf("FiatToMsats(10) = %d, want 100000", got)
	}
	if got := MsatsToFiat(100_000, rate); got != 10 {
		t.Fatalf("MsatsToFiat(100000) = %f, want 10", got)
	}
	if got := FiatToMsats(10, 0); got != 0 {
		t.Fatalf("zero rate must convert to zero, got %d", got)
	}
}

func TestStaticSwapper(t *testing.T) {
	p := NewStaticSwapper(10_000_000)
	ctx := context.Background()

	q, err := p.GetQuote(ctx, "KES", "BTC")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Rate != 10_000_000 || q.From != "KES" || q.To != "BTC" {
		t.Fatalf("quote: %+v", q)
	}

	on, err := p.CreateOnrampSwap(ctx, q, 100, "lnpb100m00", "ref")
	if err != nil {
		t.Fatalf("onramp: %v", err)
	}
	if on.ID == "" || on.Status != StatusPending {
		t.Fatalf("onramp swap: %+v", on)
	}
	if _, err := p.CreateOnrampSwap(ctx, q, 0, "inv", ""); err == nil {
		t.Fatalf("zero amount accepted")
	}
	if _, err := p.CreateOnrampSwap(ctx, q, 100, "", ""); err == nil {
		t.Fatalf("missing payout invoice accepted")
	}

	off, err := p.CreateOfframpSwap(ctx, q, 50_000, "+254700000001", "ref")
	if err != nil {
		t.Fatalf("offramp: %v", err)
	}
	if off.LightningInvoice == "" {
		t.Fatalf("offramp swap must carry a funding invoice")
	}
	if _, err := p.CreateOfframpSwap(ctx, q, 50_000, "", ""); err == nil {
		t.Fatalf("missing fiat target accepted")
	}

	p.FailSwaps = true
	if _, err := p.CreateOfframpSwap(ctx, q, 50_000, "+254700000001", ""); err == nil {
		t.Fatalf("failing provider accepted swap")
	}
}
