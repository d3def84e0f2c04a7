package repository

import (
	"context"
	"time"

	"collabhub/backend/internal/mfa/domain"
)

// Repository defines persistence for second-factor challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByID(ctx context.Context, id string) (*domain.Challenge, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DefaultChallengeTTL is the default challenge expiry. It matches the second-factor token lifetime.
const DefaultChallengeTTL = 5 * time.Minute
