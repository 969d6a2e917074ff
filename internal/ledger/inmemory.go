package ledger

import (
	"context"
	"sort"
	"sync"
)

const defaultPageSize = 20

type inMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Transaction
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and for running the API without Postgres.
func NewInMemory() Store {
	return &inMemoryStore{rows: make(map[string]Transaction)}
}

func (s *inMemoryStore) Create(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tx.ID] = tx
	return nil
}

func (s *inMemoryStore) CreateReserved(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.metaLocked(func(r Transaction) bool {
		return r.OwnerID == tx.OwnerID && r.WalletID == tx.WalletID
	})
	if tx.AmountMsats > meta.CurrentBalanceMsats {
		return ErrInsufficientFunds
	}
	s.rows[tx.ID] = tx
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.rows[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *inMemoryStore) Update(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[tx.ID]; !ok {
		return ErrNotFound
	}
	s.rows[tx.ID] = tx
	return nil
}

func (s *inMemoryStore) FindByTracker(_ context.Context, tracker string) (Transaction, error) {
	if tracker == "" {
		return Transaction{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.rows {
		if tx.PaymentTracker == tracker {
			return tx, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (s *inMemoryStore) FindByIdempotencyKey(_ context.Context, ownerID string, typ Type, key string) (Transaction, error) {
	if key == "" {
		return Transaction{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.rows {
		if tx.OwnerID == ownerID && tx.Type == typ && tx.IdempotencyKey == key {
			return tx, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (s *inMemoryStore) List(_ context.Context, f Filter) (Page, error) {
	s.mu.RLock()
	matched := make([]Transaction, 0)
	for _, tx := range s.rows {
		if matchesFilter(tx, f) {
			matched = append(matched, tx)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	size := f.Size
	if size <= 0 {
		size = defaultPageSize
	}
	total := len(matched)
	pages := (total + size - 1) / size
	page := f.Page
	if page < 0 {
		page = 0
	}
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page{
		Transactions: matched[start:end],
		PageIndex:    page,
		Size:         size,
		Total:        total,
		Pages:        pages,
	}, nil
}

func matchesFilter(tx Transaction, f Filter) bool {
	if f.OwnerID != "" && tx.OwnerID != f.OwnerID {
		return false
	}
	if f.MemberID != "" && tx.MemberID != f.MemberID {
		return false
	}
	if f.WalletID != "" && tx.WalletID != f.WalletID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	return true
}

func (s *inMemoryStore) WalletMeta(_ context.Context, ownerID, walletID string) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metaLocked(func(r Transaction) bool {
		return r.OwnerID == ownerID && r.WalletID == walletID
	}), nil
}

func (s *inMemoryStore) GroupMeta(_ context.Context, chamaID string) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metaLocked(func(r Transaction) bool {
		return r.OwnerID == chamaID
	}), nil
}

func (s *inMemoryStore) MemberMeta(_ context.Context, chamaID, memberID string) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metaLocked(func(r Transaction) bool {
		return r.OwnerID == chamaID && r.MemberID == memberID
	}), nil
}

// metaLocked aggregates the three balance terms over matching rows.
// Callers must hold at least a read lock.
func (s *inMemoryStore) metaLocked(match func(Transaction) bool) Meta {
	var meta Meta
	for _, tx := range s.rows {
		if !match(tx) {
			continue
		}
		switch tx.Type {
		case TypeDeposit:
			if depositStatuses[tx.Status] {
				meta.TotalDepositsMsats += tx.AmountMsats
			}
		case TypeWithdraw:
			if tx.Status == StatusComplete {
				meta.TotalWithdrawalsMsats += tx.AmountMsats
			} else if reservedStatuses[tx.Status] {
				meta.ReservedMsats += tx.AmountMsats
			}
		}
	}
	meta.CurrentBalanceMsats = meta.TotalDepositsMsats - meta.TotalWithdrawalsMsats - meta.ReservedMsats
	return meta
}

func (s *inMemoryStore) FindWalletConfig(_ context.Context, ownerID, walletID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.rows {
		if tx.Type == TypeWalletCreation && tx.OwnerID == ownerID && tx.WalletID == walletID {
			return tx, nil
		}
	}
	return Transaction{}, ErrNotFound
}
