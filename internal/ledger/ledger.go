package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds occurs when a withdrawal would exceed the
	// wallet's current balance, reservations included.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletExists indicates a live wallet_creation row already exists
	// for the (owner, wallet) pair.
	ErrWalletExists = errors.New("wallet already configured")
)

// Store defines the contract implemented by ledger backends.
type Store interface {
	// Create appends a transaction row.
	Create(ctx context.Context, tx Transaction) error

	// CreateReserved appends a withdrawal row only if its amount fits the
	// wallet's current balance. The affordability check and the insert are
	// one atomic step, so two concurrent withdrawals can never both pass
	// against the same pre-reservation balance.
	CreateReserved(ctx context.Context, tx Transaction) error

	// Get fetches a transaction by id.
	Get(ctx context.Context, id string) (Transaction, error)

	// Update rewrites a row in place.
	Update(ctx context.Context, tx Transaction) error

	// FindByTracker locates the row correlated to an external rail id.
	FindByTracker(ctx context.Context, tracker string) (Transaction, error)

	// FindByIdempotencyKey locates an existing row for a client-supplied
	// key. Keys are unique per (owner, type).
	FindByIdempotencyKey(ctx context.Context, ownerID string, typ Type, key string) (Transaction, error)

	// List returns a filtered page of transactions, newest first.
	List(ctx context.Context, f Filter) (Page, error)

	// WalletMeta aggregates deposits, completed withdrawals and reserved
	// withdrawals for one (owner, wallet) pair.
	WalletMeta(ctx context.Context, ownerID, walletID string) (Meta, error)

	// GroupMeta aggregates across every member transaction of a chama.
	GroupMeta(ctx context.Context, chamaID string) (Meta, error)

	// MemberMeta aggregates one member's share of a chama ledger.
	MemberMeta(ctx context.Context, chamaID, memberID string) (Meta, error)

	// FindWalletConfig fetches the live wallet_creation row for a wallet.
	FindWalletConfig(ctx context.Context, ownerID, walletID string) (Transaction, error)
}

// reservedStatuses are the withdrawal statuses that hold balance back.
// Approved rows are included: an approved-but-unexecuted chama withdrawal
// is still accepted-but-unsettled and must not free funds back up.
var reservedStatuses = map[Status]bool{
	StatusPending:    true,
	StatusApproved:   true,
	StatusProcessing: true,
}

// depositStatuses are the deposit statuses counted into total deposits.
var depositStatuses = map[Status]bool{
	StatusComplete:     true,
	StatusManualReview: true,
}

// ApplyTracker finds the row correlated to an external tracker and applies
// a status transition to it. Callers treat ErrNotFound and
// ErrInvalidTransition as expected no-ops: duplicate and late callbacks
// from payment processors are normal.
func ApplyTracker(ctx context.Context, s Store, tracker string, to Status, now time.Time) (Transaction, error) {
	tx, err := s.FindByTracker(ctx, tracker)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.SetStatus(to, now); err != nil {
		return Transaction{}, err
	}
	if err := s.Update(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
