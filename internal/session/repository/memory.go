package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"collabhub/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository. All operations serialize on one mutex, which
// gives the same read-after-write behavior as single-statement updates on Postgres.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (m *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return errors.New("session already exists")
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryRepository) ListActiveByIdentity(_ context.Context, identityID string, now time.Time) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.IdentityID == identityID && s.ActiveAt(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *MemoryRepository) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	t := at
	s.RevokedAt = &t
	return true, nil
}

func (m *MemoryRepository) RevokeAllByIdentity(_ context.Context, identityID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.IdentityID == identityID && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteInactive(_ context.Context, now time.Time) (int64, error) {
	return m.deleteWhere(func(s *domain.Session) bool { return s.OrgID == 0 && !s.ActiveAt(now) }), nil
}

func (m *MemoryRepository) DeleteInactiveByOrg(_ context.Context, orgID int64, now time.Time) (int64, error) {
	return m.deleteWhere(func(s *domain.Session) bool { return s.OrgID == orgID && !s.ActiveAt(now) }), nil
}

func (m *MemoryRepository) deleteWhere(match func(*domain.Session) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if match(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
