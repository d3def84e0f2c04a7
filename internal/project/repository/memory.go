package repository

import (
	"context"
	"sync"

	"collabhub/backend/internal/project/domain"
)

type memberKey struct {
	orgID      int64
	projectID  int64
	identityID string
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	members map[memberKey]domain.Member
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{members: make(map[memberKey]domain.Member)}
}

func (m *MemoryRepository) GetMember(_ context.Context, orgID, projectID int64, identityID string) (*domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[memberKey{orgID, projectID, identityID}]
	if !ok {
		return nil, nil
	}
	return &mem, nil
}

func (m *MemoryRepository) AddMember(_ context.Context, mem *domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey{mem.OrgID, mem.ProjectID, mem.IdentityID}] = *mem
	return nil
}
