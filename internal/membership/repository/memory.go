package repository

import (
	"context"
	"sort"
	"sync"

	"collabhub/backend/internal/membership/domain"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu          sync.RWMutex
	memberships []*domain.Membership
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) GetByIdentityAndOrg(_ context.Context, identityID string, orgID int64) (*domain.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.memberships {
		if mem.IdentityID == identityID && mem.OrgID == orgID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) ListByIdentity(_ context.Context, identityID string) ([]*domain.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Membership
	for _, mem := range m.memberships {
		if mem.IdentityID == identityID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, mem *domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.memberships = append(m.memberships, &cp)
	return nil
}
