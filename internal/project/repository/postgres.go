package repository

import (
	"context"
	"database/sql"
	"errors"

	"collabhub/backend/internal/project/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a project member repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetMember returns the identity's membership in the project, or nil if there is none in orgID.
func (r *PostgresRepository) GetMember(ctx context.Context, orgID, projectID int64, identityID string) (*domain.Member, error) {
	var (
		m    domain.Member
		role string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT organization_id, project_id, identity_id, role, created_at FROM project_members
		 WHERE organization_id = $1 AND project_id = $2 AND identity_id = $3`, orgID, projectID, identityID,
	).Scan(&m.OrgID, &m.ProjectID, &m.IdentityID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}

// AddMember inserts or updates the identity's role in the project. Used by seed data.
func (r *PostgresRepository) AddMember(ctx context.Context, m *domain.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (organization_id, project_id, identity_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (organization_id, project_id, identity_id) DO UPDATE SET role = EXCLUDED.role`,
		m.OrgID, m.ProjectID, m.IdentityID, string(m.Role), m.CreatedAt)
	return err
}
