package repository

import (
	"context"
	"database/sql"
	"errors"

	"collabhub/backend/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByIdentityAndOrg returns the membership for the given identity and org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByIdentityAndOrg(ctx context.Context, identityID string, orgID int64) (*domain.Membership, error) {
	var (
		m    domain.Membership
		role string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity_id, organization_id, role, created_at FROM memberships
		 WHERE identity_id = $1 AND organization_id = $2`, identityID, orgID,
	).Scan(&m.ID, &m.IdentityID, &m.OrgID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}

// ListByIdentity returns every membership of the identity across organizations.
func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity_id, organization_id, role, created_at FROM memberships
		 WHERE identity_id = $1 ORDER BY organization_id`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		var (
			m    domain.Membership
			role string
		)
		if err := rows.Scan(&m.ID, &m.IdentityID, &m.OrgID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create persists the membership to the database. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, identity_id, organization_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.IdentityID, m.OrgID, string(m.Role), m.CreatedAt)
	return err
}
