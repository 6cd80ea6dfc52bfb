package cast

import (
	"context"
	"sync"
)

// Store is a keyed snapshot record: one upsert-able entry per pairing code.
// Get returns ok=false for an absent record. Records have no built-in
// expiry; a stale snapshot stays readable until overwritten or cleared.
type Store interface {
	Put(ctx context.Context, code string, snap Snapshot) error
	Get(ctx context.Context, code string) (Snapshot, bool, error)
	Clear(ctx context.Context, code string) error
}

// MemoryStore keeps snapshots in process memory. Used in embedded mode and
// by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Snapshot)}
}

func (m *MemoryStore) Put(ctx context.Context, code string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[code] = snap
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code string) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.records[code]
	return snap, ok, nil
}

func (m *MemoryStore) Clear(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, code)
	return nil
}
