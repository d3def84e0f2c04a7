package domain

import "time"

// Challenge is a pending second-factor verification (second_factor_challenges table). The code
// itself is never stored, only its hash.
type Challenge struct {
	ID         string
	IdentityID string
	OrgID      int64
	CodeHash   string
	IP         string
	Device     string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the challenge can no longer be answered at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
