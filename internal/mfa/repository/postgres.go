package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"collabhub/backend/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. The challenge must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO second_factor_challenges (id, identity_id, organization_id, code_hash, ip_address, device, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.IdentityID, sql.NullInt64{Int64: c.OrgID, Valid: c.OrgID > 0}, c.CodeHash,
		c.IP, c.Device, c.ExpiresAt, c.CreatedAt)
	return err
}

// GetByID returns the challenge for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	var (
		c     domain.Challenge
		orgID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity_id, organization_id, code_hash, ip_address, device, expires_at, created_at
		 FROM second_factor_challenges WHERE id = $1`, id,
	).Scan(&c.ID, &c.IdentityID, &orgID, &c.CodeHash, &c.IP, &c.Device, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.OrgID = orgID.Int64
	return &c, nil
}

// Delete removes the challenge by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM second_factor_challenges WHERE id = $1`, id)
	return err
}

// DeleteExpired removes challenges that expired at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM second_factor_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
