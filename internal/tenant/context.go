// Package tenant carries the active organization (tenant) id through a request.
//
// The value lives only in a context.Context derived for one inbound request. There is no
// process-wide slot: a handler that was not given the request context cannot observe a tenant,
// and the value disappears with the context when the request returns, on every path.
package tenant

import (
	"context"
	"errors"
)

// ErrContextMissing is returned by Require when no organization was resolved for the request.
var ErrContextMissing = errors.New("tenant context missing")

type contextKey struct{ name string }

var organizationIDKey = contextKey{"organization_id"}

// WithOrganization returns a copy of ctx scoped to organization id.
func WithOrganization(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, organizationIDKey, id)
}

// OrganizationID returns the organization id from ctx and true if set; otherwise 0, false.
func OrganizationID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(organizationIDKey).(int64)
	return v, ok
}

// Require returns the organization id from ctx, or ErrContextMissing.
// Tenant-scoped operations must call Require instead of defaulting.
func Require(ctx context.Context) (int64, error) {
	id, ok := OrganizationID(ctx)
	if !ok {
		return 0, ErrContextMissing
	}
	return id, nil
}
