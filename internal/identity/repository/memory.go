package repository

import (
	"context"
	"errors"
	"sync"

	"collabhub/backend/internal/identity/domain"
	"collabhub/backend/internal/lockout"
)

// MemoryRepository is an in-process Repository. Lock state is kept in a lockout.MemoryStore.
type MemoryRepository struct {
	*lockout.MemoryStore

	mu      sync.RWMutex
	byID    map[string]*domain.Identity
	byEmail map[string]string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		MemoryStore: lockout.NewMemoryStore(),
		byID:        make(map[string]*domain.Identity),
		byEmail:     make(map[string]string),
	}
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	m.mu.RLock()
	id, ok := m.byEmail[domain.NormalizeEmail(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.GetByID(ctx, id)
}

func (m *MemoryRepository) Create(_ context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	email := domain.NormalizeEmail(i.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return errors.New("email already registered")
	}
	cp := *i
	cp.Email = email
	m.byID[i.ID] = &cp
	m.byEmail[email] = i.ID
	m.MemoryStore.Add(i.ID)
	return nil
}

func (m *MemoryRepository) MarkEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[id]; ok {
		i.EmailVerified = true
	}
	return nil
}
