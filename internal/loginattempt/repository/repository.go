package repository

import (
	"context"
	"time"

	"collabhub/backend/internal/loginattempt/domain"
)

// DefaultRetention is how long attempts are kept before the cleanup runner purges them.
const DefaultRetention = 30 * 24 * time.Hour

// Repository defines persistence for login attempts.
type Repository interface {
	Create(ctx context.Context, a *domain.Attempt) error
	// CountFailuresSince returns failed attempts for email at or after since.
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error)
	// DeleteBefore removes attempts made before cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
