package quota

import (
	"context"
	"sync"
)

// MemStore is an in-process Store backed by a mutex-guarded map. It is meant
// for tests and single-process deployments, never for a horizontally scaled
// gateway.
type MemStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemStore() *MemStore {
	return &MemStore{counts: make(map[string]int64)}
}

func (m *MemStore) Increment(_ context.Context, principalID, dateKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := principalID + "|" + dateKey
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemStore) Peek(_ context.Context, principalID, dateKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[principalID+"|"+dateKey], nil
}
