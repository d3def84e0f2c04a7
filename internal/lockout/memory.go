package lockout

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Identities must be added with Add before use.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Add registers identityID in the Active state.
func (m *MemoryStore) Add(identityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[identityID]; !ok {
		m.states[identityID] = Cleared()
	}
}

func (m *MemoryStore) LockState(_ context.Context, identityID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[identityID]
	if !ok {
		return State{}, ErrUnknownIdentity
	}
	return st, nil
}

func (m *MemoryStore) UpdateLockState(_ context.Context, identityID string, fn TransitionFunc) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.states[identityID]
	if !ok {
		return State{}, ErrUnknownIdentity
	}
	next, changed := fn(cur)
	if !changed {
		return cur, nil
	}
	m.states[identityID] = next
	return next, nil
}
