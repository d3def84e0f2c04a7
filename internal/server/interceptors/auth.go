package interceptors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"collabhub/backend/internal/security"
	sessionservice "collabhub/backend/internal/session/service"
)

const bearerPrefix = "bearer "

// AuthErrorHeader carries the reason a presented bearer token was not accepted. The request
// still proceeds anonymously.
const AuthErrorHeader = "X-Auth-Error"

// authErrorMetadata is the gRPC header metadata key equivalent of AuthErrorHeader.
const authErrorMetadata = "x-auth-error"

// SessionVerifier reports whether a session is still live.
type SessionVerifier interface {
	Verify(ctx context.Context, tokenID string) error
}

// Authenticator validates access tokens and cross-checks them with the session registry.
type Authenticator struct {
	tokens   *security.TokenIssuer
	sessions SessionVerifier
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(tokens *security.TokenIssuer, sessions SessionVerifier) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions}
}

// Authenticate validates an access token. On failure it returns the diagnostic reason; the
// caller must then treat the request as anonymous.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*security.Validated, security.Reason) {
	v, err := a.tokens.Validate(token)
	if err != nil {
		return nil, security.ReasonFor(err)
	}
	if v.Claims.Type != security.TokenTypeAccess || v.Claims.Temporary {
		return nil, security.ReasonUnsupported
	}
	if err := a.sessions.Verify(ctx, v.TokenID); err != nil {
		if errors.Is(err, sessionservice.ErrSessionRevoked) {
			return nil, security.ReasonRevoked
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("auth: session lookup failed")
		return nil, security.ReasonInternal
	}
	return v, ""
}

// AuthHTTP returns middleware that authenticates the Authorization bearer token. Valid tokens
// put the identity and session in the request context. Any failure sets X-Auth-Error and the
// request continues anonymously; handlers that need a caller reject it themselves.
func AuthHTTP(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := parseBearer(header)
			if token == "" {
				w.Header().Set(AuthErrorHeader, string(security.ReasonMalformed))
				next.ServeHTTP(w, r)
				return
			}
			v, reason := a.Authenticate(r.Context(), token)
			if v == nil {
				w.Header().Set(AuthErrorHeader, string(reason))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), v.IdentityID, v.TokenID)))
		})
	}
}

// AuthUnary returns a unary server interceptor that authenticates the Bearer token from gRPC
// metadata. Failures are reported in the x-auth-error header metadata. publicMethods is the set
// of full method names that may run anonymously (e.g. the health check); other methods
// without a valid token fail with Unauthenticated.
func AuthUnary(a *Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		public := publicMethods[info.FullMethod]
		raw, present := extractAuthorization(ctx)
		if !present {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		var (
			v      *security.Validated
			reason = security.ReasonMalformed
		)
		if token := parseBearer(raw); token != "" {
			v, reason = a.Authenticate(ctx, token)
		}
		if v == nil {
			_ = grpc.SetHeader(ctx, metadata.Pairs(authErrorMetadata, string(reason)))
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithIdentity(ctx, v.IdentityID, v.TokenID), req)
	}
}

// extractAuthorization returns the authorization metadata value and whether it was sent.
func extractAuthorization(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	vals := md.Get("authorization")
	if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return "", false
	}
	return vals[0], true
}

// parseBearer returns the token of a "Bearer <token>" value, or "" if malformed.
func parseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
