package repository

import (
	"context"

	"collabhub/backend/internal/project/domain"
)

// Repository reads project memberships. Every lookup is scoped to an organization so a project
// id from another tenant never matches.
type Repository interface {
	GetMember(ctx context.Context, orgID, projectID int64, identityID string) (*domain.Member, error)
	AddMember(ctx context.Context, m *domain.Member) error
}
