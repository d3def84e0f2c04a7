package interceptors

import "context"

type contextKey struct{ name string }

var (
	identityIDKey = contextKey{"identity_id"}
	sessionIDKey  = contextKey{"session_id"}
)

// WithIdentity returns a context carrying the authenticated identity and its session (token id).
// The active organization is not stored here; it lives in the tenant package's context value.
func WithIdentity(ctx context.Context, identityID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, identityIDKey, identityID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// GetIdentityID returns the identity_id from context and true if set; otherwise "", false.
func GetIdentityID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityIDKey).(string)
	return v, ok && v != ""
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok && v != ""
}
