// Package service implements the session registry: the authoritative record of issued sessions
// and their revocation state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"collabhub/backend/internal/session/domain"
	"collabhub/backend/internal/session/repository"
	"collabhub/backend/internal/tenant"
)

// maxDeviceLen bounds the stored device description in bytes.
const maxDeviceLen = 255

// ErrSessionRevoked is returned by Verify when the session is revoked, expired or unknown.
var ErrSessionRevoked = errors.New("session revoked")

// RecordParams describes a newly issued session.
type RecordParams struct {
	IdentityID string
	TokenID    string
	OrgID      int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
	IP         string
	Device     string
}

// Registry records sessions and answers revocation queries.
type Registry struct {
	repo repository.Repository
	now  func() time.Time
}

// NewRegistry returns a Registry backed by repo.
func NewRegistry(repo repository.Repository) *Registry {
	return &Registry{repo: repo, now: time.Now}
}

// WithClock returns a copy of r that reads time from now.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	cp := *r
	cp.now = now
	return &cp
}

// Record persists a new session.
func (r *Registry) Record(ctx context.Context, p RecordParams) error {
	if p.TokenID == "" || p.IdentityID == "" {
		return errors.New("token id and identity id are required")
	}
	issuedAt := p.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = r.now().UTC()
	}
	s := &domain.Session{
		ID:         p.TokenID,
		IdentityID: p.IdentityID,
		OrgID:      p.OrgID,
		IssuedAt:   issuedAt,
		ExpiresAt:  p.ExpiresAt,
		IPAddress:  strings.TrimSpace(p.IP),
		Device:     Truncate(strings.TrimSpace(p.Device), maxDeviceLen),
	}
	if err := r.repo.Create(ctx, s); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID may no longer be used. Revoked, expired and unknown sessions
// all count as revoked; a session removed by cleanup is indistinguishable from a revoked one.
func (r *Registry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return true, nil
	}
	s, err := r.repo.GetByID(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return true, nil
	}
	return !s.ActiveAt(r.now()), nil
}

// Verify returns ErrSessionRevoked when IsRevoked is true and the lookup error otherwise.
func (r *Registry) Verify(ctx context.Context, tokenID string) error {
	revoked, err := r.IsRevoked(ctx, tokenID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrSessionRevoked
	}
	return nil
}

// Get returns the session for tokenID or nil when unknown.
func (r *Registry) Get(ctx context.Context, tokenID string) (*domain.Session, error) {
	return r.repo.GetByID(ctx, tokenID)
}

// Revoke revokes tokenID. Revoking an unknown or already revoked session is a no-op.
func (r *Registry) Revoke(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	if _, err := r.repo.Revoke(ctx, tokenID, r.now().UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeIfActive revokes tokenID and reports whether this call moved it from active to revoked.
// Among concurrent callers for one session at most one gets true; expired, revoked and unknown
// sessions return false.
func (r *Registry) RevokeIfActive(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	now := r.now()
	s, err := r.repo.GetByID(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if s == nil || !s.ActiveAt(now) {
		return false, nil
	}
	ok, err := r.repo.Revoke(ctx, tokenID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return ok, nil
}

// RevokeAll revokes every session of identityID and returns how many were newly revoked.
func (r *Registry) RevokeAll(ctx context.Context, identityID string) (int64, error) {
	n, err := r.repo.RevokeAllByIdentity(ctx, identityID, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

// ListActive returns identityID's sessions that are neither revoked nor expired.
func (r *Registry) ListActive(ctx context.Context, identityID string) ([]*domain.Session, error) {
	return r.repo.ListActiveByIdentity(ctx, identityID, r.now())
}

// Cleanup deletes expired or revoked sessions that are not bound to an organization and
// returns the count removed.
func (r *Registry) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.repo.DeleteInactive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return n, nil
}

// CleanupTenant deletes expired or revoked sessions of the organization in ctx.
func (r *Registry) CleanupTenant(ctx context.Context, now time.Time) (int64, error) {
	orgID, err := tenant.Require(ctx)
	if err != nil {
		return 0, err
	}
	n, err := r.repo.DeleteInactiveByOrg(ctx, orgID, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions for organization %d: %w", orgID, err)
	}
	return n, nil
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
