package repository

import (
	"context"
	"database/sql"

	"collabhub/backend/internal/organization/domain"
)

// PostgresRepository implements Repository on the organizations table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the organization and assigns its generated id.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx,
		`INSERT INTO organizations (name, status, created_at) VALUES ($1, $2, $3) RETURNING id`,
		o.Name, string(o.Status), o.CreatedAt,
	).Scan(&o.ID)
}

// ListIDs returns all organization ids. Suspended organizations are included so their
// sessions are still cleaned up.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
