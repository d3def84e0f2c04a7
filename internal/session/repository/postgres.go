package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"collabhub/backend/internal/session/domain"
)

const sessionColumns = `id, identity_id, organization_id, issued_at, expires_at, revoked_at, ip_address, device`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.IdentityID, orgToNull(s.OrgID), s.IssuedAt, s.ExpiresAt,
		timeToNullTime(s.RevokedAt), stringToNull(s.IPAddress), stringToNull(s.Device),
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByIdentity returns the identity's non-revoked, unexpired sessions, newest first.
func (r *PostgresRepository) ListActiveByIdentity(ctx context.Context, identityID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE identity_id = $1 AND revoked_at IS NULL AND expires_at > $2
		 ORDER BY issued_at DESC`,
		identityID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Revoke marks the session with the given id as revoked. The conditional UPDATE makes exactly
// one of several concurrent callers see true.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllByIdentity revokes every non-revoked session of the identity and returns how many changed.
func (r *PostgresRepository) RevokeAllByIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE identity_id = $1 AND revoked_at IS NULL`, identityID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) DeleteInactive(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions
		 WHERE organization_id IS NULL AND (revoked_at IS NOT NULL OR expires_at <= $1)`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) DeleteInactiveByOrg(ctx context.Context, orgID int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions
		 WHERE organization_id = $1 AND (revoked_at IS NOT NULL OR expires_at <= $2)`, orgID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		orgID     sql.NullInt64
		revokedAt sql.NullTime
		ip        sql.NullString
		device    sql.NullString
	)
	if err := row.Scan(&s.ID, &s.IdentityID, &orgID, &s.IssuedAt, &s.ExpiresAt, &revokedAt, &ip, &device); err != nil {
		return nil, err
	}
	s.OrgID = orgID.Int64
	s.RevokedAt = nullTimeToPtr(revokedAt)
	s.IPAddress = ip.String
	s.Device = device.String
	return &s, nil
}

func orgToNull(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
