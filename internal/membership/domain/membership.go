package domain

import (
	"time"
)

// Membership links an identity to an organization with a role.
type Membership struct {
	ID         string
	IdentityID string
	OrgID      int64
	Role       Role
	CreatedAt  time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsAdmin reports whether the role may administer the organization.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}
