package domain

import "time"

// Session is an issued credential pair tracked for revocation. ID is the token id embedded in
// both the access and the refresh token.
type Session struct {
	ID         string
	IdentityID string
	OrgID      int64      // tenant active at sign-in; 0 when none
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time // nil when not revoked
	IPAddress  string
	Device     string
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// ActiveAt reports whether the session may be used at now: not revoked and not expired.
func (s *Session) ActiveAt(now time.Time) bool {
	return !s.Revoked() && now.Before(s.ExpiresAt)
}
