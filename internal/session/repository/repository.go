package repository

import (
	"context"
	"time"

	"collabhub/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Writes must be visible to every subsequent read
// once they return.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByIdentity(ctx context.Context, identityID string, now time.Time) ([]*domain.Session, error)
	// Revoke sets revoked_at on a non-revoked session and reports whether this call did so.
	// Unknown or already revoked ids return false.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllByIdentity(ctx context.Context, identityID string, at time.Time) (int64, error)
	// DeleteInactive removes expired or revoked sessions not bound to an organization.
	DeleteInactive(ctx context.Context, now time.Time) (int64, error)
	// DeleteInactiveByOrg removes expired or revoked sessions bound to orgID.
	DeleteInactiveByOrg(ctx context.Context, orgID int64, now time.Time) (int64, error)
}
