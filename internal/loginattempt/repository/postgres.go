package repository

import (
	"context"
	"database/sql"
	"time"

	"collabhub/backend/internal/loginattempt/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login attempt repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *domain.Attempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (id, email, ip_address, success, failure_reason, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Email, a.IP, a.Success,
		sql.NullString{String: string(a.FailureReason), Valid: a.FailureReason != ""}, a.AttemptedAt)
	return err
}

func (r *PostgresRepository) CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE email = $1 AND success = FALSE AND attempted_at >= $2`,
		email, since,
	).Scan(&n)
	return n, err
}

func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
