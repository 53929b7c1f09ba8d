package ledger

import (
	"context"
	"sync"

	"xdao.co/attest/address"
)

// AccountStore persists accounts. Commit must apply all updates and deletes
// or none of them.
type AccountStore interface {
	Get(ctx context.Context, key address.Address) (*Account, error)
	Commit(ctx context.Context, updates map[address.Address]*Account, deletes []address.Address) error
}

// MemoryStore is an in-process AccountStore.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[address.Address]*Account
}

var _ AccountStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[address.Address]*Account)}
}

func (m *MemoryStore) Get(_ context.Context, key address.Address) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (m *MemoryStore) Commit(ctx context.Context, updates map[address.Address]*Account, deletes []address.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, a := range updates {
		m.accounts[k] = a.Clone()
	}
	for _, k := range deletes {
		delete(m.accounts, k)
	}
	return nil
}

// Len returns the number of stored accounts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
