package repository

import (
	"context"

	"collabhub/backend/internal/identity/domain"
	"collabhub/backend/internal/lockout"
)

// Repository defines persistence for identities. It is also the lock state store for the
// lockout guard.
type Repository interface {
	lockout.Store
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	MarkEmailVerified(ctx context.Context, id string) error
}
