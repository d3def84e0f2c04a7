package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"collabhub/backend/internal/identity/domain"
	"collabhub/backend/internal/lockout"
)

const identityColumns = `id, email, name, password_hash, status, email_verified, two_factor_enabled, super_admin, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// GetByEmail returns the identity for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, domain.NormalizeEmail(email))
	return scanIdentity(row)
}

// Create persists the identity to the database. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		i.ID, domain.NormalizeEmail(i.Email), i.Name, i.PasswordHash, string(i.Status),
		i.EmailVerified, i.TwoFactorEnabled, i.SuperAdmin, i.CreatedAt, i.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET email_verified = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	return err
}

// LockState reads the identity's lock columns without taking a row lock.
func (r *PostgresRepository) LockState(ctx context.Context, identityID string) (lockout.State, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT failed_attempts, locked, locked_until FROM identities WHERE id = $1`, identityID)
	return scanLockState(row)
}

// UpdateLockState runs fn against the lock columns while holding the row lock, so concurrent
// failed attempts and unlocks for one identity are serialized.
func (r *PostgresRepository) UpdateLockState(ctx context.Context, identityID string, fn lockout.TransitionFunc) (lockout.State, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return lockout.State{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT failed_attempts, locked, locked_until FROM identities WHERE id = $1 FOR UPDATE`, identityID)
	cur, err := scanLockState(row)
	if err != nil {
		return lockout.State{}, err
	}
	next, changed := fn(cur)
	if !changed {
		return cur, tx.Commit()
	}
	var until sql.NullTime
	if next.Locked {
		until = sql.NullTime{Time: next.LockedUntil, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE identities SET failed_attempts = $2, locked = $3, locked_until = $4, updated_at = $5 WHERE id = $1`,
		identityID, next.FailedAttempts, next.Locked, until, time.Now().UTC(),
	); err != nil {
		return lockout.State{}, fmt.Errorf("update lock state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return lockout.State{}, err
	}
	return next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLockState(row rowScanner) (lockout.State, error) {
	var (
		st    lockout.State
		until sql.NullTime
	)
	if err := row.Scan(&st.FailedAttempts, &st.Locked, &until); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lockout.State{}, lockout.ErrUnknownIdentity
		}
		return lockout.State{}, err
	}
	if until.Valid {
		st.LockedUntil = until.Time
	}
	return st, nil
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	var (
		i      domain.Identity
		status string
	)
	err := row.Scan(&i.ID, &i.Email, &i.Name, &i.PasswordHash, &status,
		&i.EmailVerified, &i.TwoFactorEnabled, &i.SuperAdmin, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Status = domain.Status(status)
	return &i, nil
}
