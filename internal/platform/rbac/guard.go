// Package rbac answers whether the calling identity may act on a resource in the current tenant.
// Every organization and project check is filtered to the tenant in the request context, so a
// role granted in one organization never authorizes an action in another. Super-admin is a
// separate explicit check and never bypasses that filtering.
package rbac

import (
	"context"
	"fmt"

	identitydomain "collabhub/backend/internal/identity/domain"
	membershipdomain "collabhub/backend/internal/membership/domain"
	projectdomain "collabhub/backend/internal/project/domain"
	"collabhub/backend/internal/server/interceptors"
	"collabhub/backend/internal/tenant"
)

// MembershipGetter returns an identity's membership in an org, or nil when there is none.
type MembershipGetter interface {
	GetByIdentityAndOrg(ctx context.Context, identityID string, orgID int64) (*membershipdomain.Membership, error)
}

// ProjectMemberGetter returns an identity's membership in a project of an org, or nil.
type ProjectMemberGetter interface {
	GetMember(ctx context.Context, orgID, projectID int64, identityID string) (*projectdomain.Member, error)
}

// IdentityGetter resolves identities for the super-admin check.
type IdentityGetter interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// Guard performs tenant-filtered authorization checks for the identity in the context.
type Guard struct {
	memberships MembershipGetter
	projects    ProjectMemberGetter
	identities  IdentityGetter
	eval        Evaluator
}

// NewGuard returns a Guard.
func NewGuard(memberships MembershipGetter, projects ProjectMemberGetter, identities IdentityGetter, eval Evaluator) *Guard {
	return &Guard{memberships: memberships, projects: projects, identities: identities, eval: eval}
}

// scope returns the caller and tenant. A missing tenant is tenant.ErrContextMissing.
func scope(ctx context.Context) (string, int64, error) {
	identityID, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return "", 0, ErrUnauthenticated
	}
	orgID, err := tenant.Require(ctx)
	if err != nil {
		return "", 0, err
	}
	return identityID, orgID, nil
}

// Membership returns the caller's membership in the current tenant, or nil if not a member.
func (g *Guard) Membership(ctx context.Context) (*membershipdomain.Membership, error) {
	identityID, orgID, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	m, err := g.memberships.GetByIdentityAndOrg(ctx, identityID, orgID)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve membership: %w", err)
	}
	if m != nil && m.OrgID != orgID {
		return nil, nil
	}
	return m, nil
}

func (g *Guard) decide(ctx context.Context, d Decision, projectID int64) (bool, error) {
	identityID, orgID, err := scope(ctx)
	if err != nil {
		return false, err
	}
	in := Input{Tenant: orgID, IdentityID: identityID, ProjectID: projectID}
	if in.Membership, err = g.memberships.GetByIdentityAndOrg(ctx, identityID, orgID); err != nil {
		return false, fmt.Errorf("rbac: resolve membership: %w", err)
	}
	if projectID > 0 && g.projects != nil {
		if in.ProjectMember, err = g.projects.GetMember(ctx, orgID, projectID, identityID); err != nil {
			return false, fmt.Errorf("rbac: resolve project member: %w", err)
		}
	}
	return g.eval.Allow(ctx, d, in)
}

func (g *Guard) require(ctx context.Context, d Decision, projectID int64, resource, action string) error {
	ok, err := g.decide(ctx, d, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedActionError{Resource: resource, Action: action}
	}
	return nil
}

// IsOrgMember reports whether the caller belongs to the current tenant.
func (g *Guard) IsOrgMember(ctx context.Context) (bool, error) {
	return g.decide(ctx, DecisionOrgMember, 0)
}

// RequireOrgMember fails unless the caller belongs to the current tenant.
func (g *Guard) RequireOrgMember(ctx context.Context) error {
	return g.require(ctx, DecisionOrgMember, 0, ResourceOrganization, "access")
}

// IsOrgAdmin reports whether the caller is owner or admin of the current tenant.
func (g *Guard) IsOrgAdmin(ctx context.Context) (bool, error) {
	return g.decide(ctx, DecisionOrgAdmin, 0)
}

// RequireOrgAdmin fails unless the caller is owner or admin of the current tenant.
func (g *Guard) RequireOrgAdmin(ctx context.Context) error {
	return g.require(ctx, DecisionOrgAdmin, 0, ResourceOrganization, "administer")
}

// IsProjectMember reports whether the caller is a member of projectID in the current tenant.
func (g *Guard) IsProjectMember(ctx context.Context, projectID int64) (bool, error) {
	return g.decide(ctx, DecisionProjectMember, projectID)
}

func (g *Guard) RequireProjectMember(ctx context.Context, projectID int64) error {
	return g.require(ctx, DecisionProjectMember, projectID, projectResource(projectID), "access")
}

// IsProjectLeadOrAdmin reports whether the caller leads projectID or administers the tenant.
func (g *Guard) IsProjectLeadOrAdmin(ctx context.Context, projectID int64) (bool, error) {
	return g.decide(ctx, DecisionProjectLeadOrAdmin, projectID)
}

func (g *Guard) RequireProjectLeadOrAdmin(ctx context.Context, projectID int64) error {
	return g.require(ctx, DecisionProjectLeadOrAdmin, projectID, projectResource(projectID), "manage")
}

// IsSuperAdmin reports whether the caller holds the platform super-admin flag. It does not
// read tenant context and grants nothing inside a tenant by itself.
func (g *Guard) IsSuperAdmin(ctx context.Context) (bool, error) {
	identityID, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return false, ErrUnauthenticated
	}
	ident, err := g.identities.GetByID(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("rbac: resolve identity: %w", err)
	}
	return ident != nil && ident.SuperAdmin && ident.Status == identitydomain.StatusActive, nil
}

func (g *Guard) RequireSuperAdmin(ctx context.Context) error {
	ok, err := g.IsSuperAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedActionError{Resource: ResourcePlatform, Action: "administer"}
	}
	return nil
}

func projectResource(id int64) string {
	return fmt.Sprintf("%s:%d", ResourceProject, id)
}
