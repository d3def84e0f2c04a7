package repository

import (
	"context"

	"collabhub/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	// Create inserts o and sets o.ID to the generated id.
	Create(ctx context.Context, o *domain.Organization) error
	// ListIDs returns the ids of every organization, in ascending order.
	ListIDs(ctx context.Context) ([]int64, error)
}
