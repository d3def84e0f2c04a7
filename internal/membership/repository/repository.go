package repository

import (
	"context"

	"collabhub/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetByIdentityAndOrg(ctx context.Context, identityID string, orgID int64) (*domain.Membership, error)
	ListByIdentity(ctx context.Context, identityID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
}
