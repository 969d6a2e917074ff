package rail

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pesabit/pesabit/internal/events"
)

func TestInvoiceEncodeDecode(t *testing.T) {
	n := NewStaticNode(events.NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()

	inv, err := n.Invoice(ctx, 42_000, "memo")
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if inv.OperationID == "" {
		t.Fatalf("invoice missing operation id")
	}

	dec, err := n.Decode(ctx, inv.Invoice)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.AmountMsats != 42_000 {
		t.Fatalf("decoded amount = %d, want 42000", dec.AmountMsats)
	}

	if _, err := n.Decode(ctx, "lnbc123"); err == nil {
		t.Fatalf("foreign invoice decoded")
	}
	if _, err := n.Invoice(ctx, 0, ""); err == nil {
		t.Fatalf("zero amount invoice issued")
	}
}

func TestSettleReceiveRoutesToRegisteredEngine(t *testing.T) {
	router := events.NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n := NewStaticNode(router)
	ctx := context.Background()

	h := &capture{}
	router.Register(events.EngineSolo, h)

	if err := n.Receive(ctx, events.EngineSolo, "op-1"); err != nil {
		t.Fatalf("receive: %v", err)
	}
	n.SettleReceive(ctx, "op-1", true, "drive-1")
	n.SettleReceive(ctx, "op-unknown", true, "")

	if len(h.successes) != 1 {
		t.Fatalf("successes = %d, want 1", len(h.successes))
	}
	if h.successes[0].LinkedCollection != "drive-1" {
		t.Fatalf("linked collection not carried: %+v", h.successes[0])
	}

	n.SettleReceive(ctx, "op-1", false, "")
	if len(h.failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(h.failures))
	}
}

type capture struct {
	successes []events.ReceiveSuccess
	failures  []events.ReceiveFailure
}

func (c *capture) HandleReceiveSuccess(_ context.Context, ev events.ReceiveSuccess) {
	c.successes = append(c.successes, ev)
}

func (c *capture) HandleReceiveFailure(_ context.Context, ev events.ReceiveFailure) {
	c.failures = append(c.failures, ev)
}

func (c *capture) HandleSwapStatus(context.Context, events.SwapStatus) {}
