package interceptors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"collabhub/backend/internal/security"
	sessionrepo "collabhub/backend/internal/session/repository"
	sessionservice "collabhub/backend/internal/session/service"
)

type authFixture struct {
	tokens   *security.TokenIssuer
	registry *sessionservice.Registry
	auth     *Authenticator
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		tokens:   security.NewTestTokenIssuer(),
		registry: sessionservice.NewRegistry(sessionrepo.NewMemoryRepository()),
	}
	f.auth = NewAuthenticator(f.tokens, f.registry)
	return f
}

// login issues a token pair and records its session.
func (f *authFixture) login(t *testing.T, identityID string) security.TokenPair {
	t.Helper()
	pair, err := f.tokens.IssuePair(identityID, 0, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if err := f.registry.Record(context.Background(), sessionservice.RecordParams{
		IdentityID: identityID,
		TokenID:    pair.Access.TokenID,
		ExpiresAt:  pair.Refresh.ExpiresAt,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	return pair
}

type seen struct {
	identityID string
	sessionID  string
	ok         bool
}

func captureHandler(out *seen) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out.identityID, out.ok = GetIdentityID(r.Context())
		out.sessionID, _ = GetSessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthHTTP_ValidToken(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.login(t, "user-1")

	var got seen
	h := AuthHTTP(f.auth)(captureHandler(&got))
	r := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+pair.Access.Token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if !got.ok || got.identityID != "user-1" || got.sessionID != pair.Access.TokenID {
		t.Errorf("context = %+v", got)
	}
	if v := w.Header().Get(AuthErrorHeader); v != "" {
		t.Errorf("%s = %q, want empty", AuthErrorHeader, v)
	}
}

func TestAuthHTTP_FailuresProceedAnonymously(t *testing.T) {
	f := newAuthFixture(t)
	revoked := f.login(t, "user-1")
	if err := f.registry.Revoke(context.Background(), revoked.Access.TokenID); err != nil {
		t.Fatal(err)
	}
	unrecorded, _ := f.tokens.IssuePair("user-2", 0, time.Minute, time.Hour)
	expired, _ := f.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).Issue("user-3", security.Claims{Type: security.TokenTypeAccess}, time.Minute)
	refresh := f.login(t, "user-4").Refresh.Token
	tmp, _ := f.tokens.IssueSecondFactor("user-5", "challenge", 0)

	tests := []struct {
		name   string
		header string
		reason security.Reason
	}{
		{"revoked session", "Bearer " + revoked.Access.Token, security.ReasonRevoked},
		{"unknown session", "Bearer " + unrecorded.Access.Token, security.ReasonRevoked},
		{"expired", "Bearer " + expired.Token, security.ReasonExpired},
		{"garbage", "Bearer not.a.jwt", security.ReasonMalformed},
		{"not bearer", "Basic dXNlcjpwYXNz", security.ReasonMalformed},
		{"refresh token", "Bearer " + refresh, security.ReasonUnsupported},
		{"second factor token", "Bearer " + tmp.Token, security.ReasonUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got seen
			h := AuthHTTP(f.auth)(captureHandler(&got))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want handler to run", w.Code)
			}
			if got.ok {
				t.Error("identity must not be set")
			}
			if v := w.Header().Get(AuthErrorHeader); v != string(tt.reason) {
				t.Errorf("%s = %q, want %q", AuthErrorHeader, v, tt.reason)
			}
		})
	}
}

func TestAuthHTTP_NoHeader(t *testing.T) {
	f := newAuthFixture(t)
	var got seen
	w := httptest.NewRecorder()
	AuthHTTP(f.auth)(captureHandler(&got)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got.ok || w.Header().Get(AuthErrorHeader) != "" {
		t.Errorf("anonymous request: identity=%v header=%q", got.ok, w.Header().Get(AuthErrorHeader))
	}
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string) error { return errors.New("db down") }

func TestAuthenticator_InternalError(t *testing.T) {
	tokens := security.NewTestTokenIssuer()
	pair, _ := tokens.IssuePair("user-1", 0, time.Minute, time.Hour)
	a := NewAuthenticator(tokens, failingVerifier{})
	v, reason := a.Authenticate(context.Background(), pair.Access.Token)
	if v != nil || reason != security.ReasonInternal {
		t.Errorf("Authenticate = %v, %q; want nil, internal", v, reason)
	}
}

// fakeStream records header metadata set by interceptors.
type fakeStream struct {
	mu     sync.Mutex
	header metadata.MD
}

func (s *fakeStream) Method() string { return "/test.Service/Method" }

func (s *fakeStream) SetHeader(md metadata.MD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = metadata.Join(s.header, md)
	return nil
}

func (s *fakeStream) SendHeader(md metadata.MD) error { return s.SetHeader(md) }

func (s *fakeStream) SetTrailer(metadata.MD) error { return nil }

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	id, _ := GetIdentityID(ctx)
	return id, nil
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	f := newAuthFixture(t)
	interceptor := AuthUnary(f.auth, map[string]bool{"/test.Service/Public": true})

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/Public"}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "" {
		t.Errorf("identity = %v, want anonymous", resp)
	}
}

func TestAuthUnary_ProtectedMethod(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.login(t, "user-1")
	interceptor := AuthUnary(f.auth, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Protected"}

	_, err := interceptor(context.Background(), "request", info, okHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("no token: code = %v, want Unauthenticated", status.Code(err))
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer "+pair.Access.Token))
	resp, err := interceptor(ctx, "request", info, okHandler)
	if err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if resp != "user-1" {
		t.Errorf("identity = %v, want user-1", resp)
	}
}

func TestAuthUnary_SetsAuthErrorHeader(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.login(t, "user-1")
	if err := f.registry.Revoke(context.Background(), pair.Access.TokenID); err != nil {
		t.Fatal(err)
	}
	interceptor := AuthUnary(f.auth, map[string]bool{"/test.Service/Public": true})

	stream := &fakeStream{}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+pair.Access.Token))
	ctx = grpc.NewContextWithServerTransportStream(ctx, stream)
	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/Public"}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "" {
		t.Errorf("identity = %v, want anonymous", resp)
	}
	if got := stream.header.Get(authErrorMetadata); len(got) != 1 || got[0] != string(security.ReasonRevoked) {
		t.Errorf("x-auth-error = %v, want [revoked]", got)
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"BEARER   abc  ", "abc"},
		{"  Bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseBearer(tt.in); got != tt.want {
			t.Errorf("parseBearer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
