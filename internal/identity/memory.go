package identity

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and as the base for
// the file-backed store.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

// NewMemoryStore creates an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: make(map[string]Identity)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (m *MemoryStore) Put(ctx context.Context, ident Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[ident.ID] = ident
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.identities[id]
	delete(m.identities, id)
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Identity, 0, len(m.identities))
	for _, ident := range m.identities {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
