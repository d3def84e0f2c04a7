package domain

import "time"

// Role is a project-level role.
type Role string

const (
	RoleLead   Role = "lead"
	RoleMember Role = "member"
)

// Member grants an identity access to a project inside one organization.
// Rows are written by the project collaborator; the security core only reads them.
type Member struct {
	OrgID      int64
	ProjectID  int64
	IdentityID string
	Role       Role
	CreatedAt  time.Time
}
