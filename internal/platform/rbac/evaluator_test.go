package rbac

import (
	"context"
	"testing"

	membershipdomain "collabhub/backend/internal/membership/domain"
	projectdomain "collabhub/backend/internal/project/domain"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_Allow(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	admin := &membershipdomain.Membership{IdentityID: "u", OrgID: 1, Role: membershipdomain.RoleAdmin}
	member := &membershipdomain.Membership{IdentityID: "u", OrgID: 1, Role: membershipdomain.RoleMember}
	lead := &projectdomain.Member{OrgID: 1, ProjectID: 7, IdentityID: "u", Role: projectdomain.RoleLead}

	tests := []struct {
		name     string
		decision Decision
		in       Input
		want     bool
	}{
		{"no membership", DecisionOrgMember, Input{Tenant: 1, IdentityID: "u"}, false},
		{"member", DecisionOrgMember, Input{Tenant: 1, IdentityID: "u", Membership: member}, true},
		{"membership of other tenant", DecisionOrgMember, Input{Tenant: 2, IdentityID: "u", Membership: admin}, false},
		{"admin", DecisionOrgAdmin, Input{Tenant: 1, Membership: admin}, true},
		{"member is not admin", DecisionOrgAdmin, Input{Tenant: 1, Membership: member}, false},
		{"zero tenant", DecisionOrgAdmin, Input{Tenant: 0, Membership: &membershipdomain.Membership{Role: membershipdomain.RoleOwner}}, false},
		{"project lead", DecisionProjectLeadOrAdmin, Input{Tenant: 1, ProjectID: 7, Membership: member, ProjectMember: lead}, true},
		{"lead of other project", DecisionProjectMember, Input{Tenant: 1, ProjectID: 8, Membership: member, ProjectMember: lead}, false},
		{"lead without org membership", DecisionProjectMember, Input{Tenant: 1, ProjectID: 7, ProjectMember: lead}, false},
		{"org admin manages project", DecisionProjectLeadOrAdmin, Input{Tenant: 1, ProjectID: 7, Membership: admin}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tt.decision, tt.in)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allow(%s) = %v, want %v", tt.decision, got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_UnknownDecision(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ok, err := e.Allow(ctx, Decision("delete_everything"), Input{Tenant: 1})
	if err == nil || ok {
		t.Errorf("Allow(unknown) = %v, %v; want error and deny", ok, err)
	}
}
