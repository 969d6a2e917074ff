// Package events carries typed payment events between the external rails
// and the wallet engines. There is no shared bus: payloads carry an
// explicit target-engine tag and a Router dispatches them to the handler
// registered for that engine.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Engine tags the wallet engine a payment event is addressed to.
type Engine string

const (
	EngineSolo  Engine = "solo"
	EngineChama Engine = "chama"
)

// ReceiveSuccess reports a settled Lightning receive.
type ReceiveSuccess struct {
	Target      Engine
	OperationID string
	// LinkedCollection marks a deposit tied to an external collection
	// campaign; settlement re-emits a CollectionSettled event for it.
	LinkedCollection string
}

// ReceiveFailure reports a failed or expired Lightning receive.
type ReceiveFailure struct {
	Target      Engine
	OperationID string
	Reason      string
}

// SwapStatus reports a fiat swap status change. Statuses map 1:1 onto
// transaction statuses.
type SwapStatus struct {
	Target  Engine
	Tracker string
	Status  string
	Err     string
}

// Handler is implemented by each wallet engine to reconcile payment events
// against its ledger rows.
type Handler interface {
	HandleReceiveSuccess(ctx context.Context, ev ReceiveSuccess)
	HandleReceiveFailure(ctx context.Context, ev ReceiveFailure)
	HandleSwapStatus(ctx context.Context, ev SwapStatus)
}

// CollectionSettled is the derived domain event re-emitted when a
// linked-collection deposit completes.
type CollectionSettled struct {
	Collection  string
	TxID        string
	AmountMsats int64
}

// Router dispatches typed payment events to per-engine handlers. Events
// addressed to an unregistered engine are logged no-ops.
type Router struct {
	mu       sync.RWMutex
	handlers map[Engine]Handler
	subs     []func(context.Context, CollectionSettled)
	logger   *slog.Logger
}

// NewRouter builds an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{handlers: make(map[Engine]Handler), logger: logger}
}

// Register binds an engine's handler. The last registration wins.
func (r *Router) Register(e Engine, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[e] = h
}

// SubscribeCollections adds a subscriber for derived collection events.
func (r *Router) SubscribeCollections(fn func(context.Context, CollectionSettled)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

func (r *Router) handlerFor(e Engine) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[e]
	return h, ok
}

// ReceiveSuccess routes a settled receive to its target engine.
func (r *Router) ReceiveSuccess(ctx context.Context, ev ReceiveSuccess) {
	h, ok := r.handlerFor(ev.Target)
	if !ok {
		r.logger.Warn("receive success for unregistered engine", "target", ev.Target, "operation_id", ev.OperationID)
		return
	}
	h.HandleReceiveSuccess(ctx, ev)
}

// ReceiveFailure routes a failed receive to its target engine.
func (r *Router) ReceiveFailure(ctx context.Context, ev ReceiveFailure) {
	h, ok := r.handlerFor(ev.Target)
	if !ok {
		r.logger.Warn("receive failure for unregistered engine", "target", ev.Target, "operation_id", ev.OperationID)
		return
	}
	h.HandleReceiveFailure(ctx, ev)
}

// SwapStatus routes a swap status change to its target engine.
func (r *Router) SwapStatus(ctx context.Context, ev SwapStatus) {
	h, ok := r.handlerFor(ev.Target)
	if !ok {
		r.logger.Warn("swap status for unregistered engine", "target", ev.Target, "tracker", ev.Tracker)
		return
	}
	h.HandleSwapStatus(ctx, ev)
}

// PublishCollectionSettled fans a derived collection event out to
// subscribers.
func (r *Router) PublishCollectionSettled(ctx context.Context, ev CollectionSettled) {
	r.mu.RLock()
	subs := make([]func(context.Context, CollectionSettled), len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, ev)
	}
}
