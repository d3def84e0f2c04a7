package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	membershipdomain "collabhub/backend/internal/membership/domain"
	projectdomain "collabhub/backend/internal/project/domain"
)

// Decision names a boolean rule in the authorization policy.
type Decision string

const (
	DecisionOrgMember          Decision = "org_member"
	DecisionOrgAdmin           Decision = "org_admin"
	DecisionProjectMember      Decision = "project_member"
	DecisionProjectLeadOrAdmin Decision = "project_lead_or_admin"
)

// Input is what a decision is evaluated over. Membership and ProjectMember must already be
// resolved for Tenant; the policy re-checks that their organization matches.
type Input struct {
	Tenant        int64
	IdentityID    string
	ProjectID     int64
	Membership    *membershipdomain.Membership
	ProjectMember *projectdomain.Member
}

// Evaluator decides authorization rules.
type Evaluator interface {
	Allow(ctx context.Context, decision Decision, in Input) (bool, error)
}

const policyQuery = "data.collabhub.authz"

// Policy is the authorization policy. A grant only counts when it was made in the tenant the
// request is scoped to.
const Policy = `package collabhub.authz

default org_member := false

default org_admin := false

default project_member := false

default project_lead_or_admin := false

org_member if {
	input.tenant > 0
	input.membership.organization_id == input.tenant
}

org_admin if {
	org_member
	input.membership.role in {"owner", "admin"}
}

project_member if {
	org_member
	input.project_id > 0
	input.project_member.organization_id == input.tenant
	input.project_member.project_id == input.project_id
}

project_lead_or_admin if org_admin

project_lead_or_admin if {
	project_member
	input.project_member.role == "lead"
}
`

// OPAEvaluator evaluates Policy with an in-process OPA Rego engine. The query is prepared once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles Policy.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("authz.rego", Policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates decision. Evaluation failures deny and return the error.
func (e *OPAEvaluator) Allow(ctx context.Context, decision Decision, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(toInput(in)))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, errors.New("authz policy returned no result")
	}
	rules, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("authz policy returned %T", rs[0].Expressions[0].Value)
	}
	v, ok := rules[string(decision)].(bool)
	if !ok {
		return false, fmt.Errorf("authz policy has no decision %q", decision)
	}
	return v, nil
}

// HealthCheck evaluates a decision over an empty input. Used by the readiness check.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, DecisionOrgMember, Input{})
	return err
}

func toInput(in Input) map[string]interface{} {
	out := map[string]interface{}{
		"tenant":      in.Tenant,
		"identity_id": in.IdentityID,
		"project_id":  in.ProjectID,
	}
	if m := in.Membership; m != nil {
		out["membership"] = map[string]interface{}{
			"organization_id": m.OrgID,
			"identity_id":     m.IdentityID,
			"role":            string(m.Role),
		}
	}
	if pm := in.ProjectMember; pm != nil {
		out["project_member"] = map[string]interface{}{
			"organization_id": pm.OrgID,
			"project_id":      pm.ProjectID,
			"identity_id":     pm.IdentityID,
			"role":            string(pm.Role),
		}
	}
	return out
}
