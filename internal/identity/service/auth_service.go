package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	identitydomain "collabhub/backend/internal/identity/domain"
	"collabhub/backend/internal/lockout"
	loginattemptdomain "collabhub/backend/internal/loginattempt/domain"
	membershipdomain "collabhub/backend/internal/membership/domain"
	"collabhub/backend/internal/mfa"
	mfadomain "collabhub/backend/internal/mfa/domain"
	"collabhub/backend/internal/notify"
	"collabhub/backend/internal/platform/rbac"
	"collabhub/backend/internal/ratelimit"
	"collabhub/backend/internal/security"
	"collabhub/backend/internal/server/interceptors"
	sessiondomain "collabhub/backend/internal/session/domain"
	sessionservice "collabhub/backend/internal/session/service"
	"collabhub/backend/internal/telemetry"
	telemetrydomain "collabhub/backend/internal/telemetry/domain"
	"collabhub/backend/internal/tenant"
)

// Sentinel errors for auth service; the HTTP handler maps them to status codes.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidSecondFactor      = errors.New("invalid or expired second factor")
	ErrInvalidRefreshToken      = errors.New("invalid or expired refresh token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrNotOrgMember             = errors.New("identity is not a member of the organization")
	ErrSessionNotFound          = errors.New("session not found")
)

const eventSource = "auth"

// recentFailuresWindow is how far back Unlock counts failed attempts for the admin.
const recentFailuresWindow = 24 * time.Hour

// AuthResult holds the outcome of a sign-in step. Either SecondFactorRequired is set with a
// TemporaryToken, or the token pair fields are set.
type AuthResult struct {
	AccessToken          string
	RefreshToken         string
	ExpiresAt            time.Time
	SessionID            string
	IdentityID           string
	OrgID                int64
	SecondFactorRequired bool
	TemporaryToken       string
}

// LoginParams is one password sign-in. OrgID is optional; when set the identity must be a member.
type LoginParams struct {
	Email    string
	Password string
	OrgID    int64
	IP       string
	Device   string
}

// UnlockResult reports an administrative unlock.
type UnlockResult struct {
	IdentityID     string
	RecentFailures int64
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*identitydomain.Identity, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

// MembershipRepo is the minimal membership repository needed by the auth service.
type MembershipRepo interface {
	GetByIdentityAndOrg(ctx context.Context, identityID string, orgID int64) (*membershipdomain.Membership, error)
}

// ChallengeRepo stores pending second-factor challenges.
type ChallengeRepo interface {
	Create(ctx context.Context, c *mfadomain.Challenge) error
	GetByID(ctx context.Context, id string) (*mfadomain.Challenge, error)
	Delete(ctx context.Context, id string) error
}

// AttemptRepo is the login attempt log.
type AttemptRepo interface {
	Create(ctx context.Context, a *loginattemptdomain.Attempt) error
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error)
}

// SessionRegistry is the subset of the session registry used by sign-in flows.
type SessionRegistry interface {
	Record(ctx context.Context, p sessionservice.RecordParams) error
	Verify(ctx context.Context, tokenID string) error
	Get(ctx context.Context, tokenID string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, tokenID string) error
	RevokeIfActive(ctx context.Context, tokenID string) (bool, error)
	RevokeAll(ctx context.Context, identityID string) (int64, error)
	ListActive(ctx context.Context, identityID string) ([]*sessiondomain.Session, error)
}

// Deps are the collaborators of AuthService. Events and Authz may be nil; Unlock then fails.
type Deps struct {
	Identities  IdentityRepo
	Memberships MembershipRepo
	Challenges  ChallengeRepo
	Attempts    AttemptRepo
	Sessions    SessionRegistry
	Lock        *lockout.Guard
	Limiter     *ratelimit.Limiter
	Tokens      *security.TokenIssuer
	Hasher      *security.Hasher
	Notifier    notify.Sender
	Events      telemetry.EventEmitter
	Authz       *rbac.Guard

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SecondFactorTTL time.Duration
}

// AuthService implements password sign-in with an optional email second factor, refresh
// rotation, logout, verification email and administrative unlock.
type AuthService struct {
	Deps
	now func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps) *AuthService {
	if d.SecondFactorTTL <= 0 {
		d.SecondFactorTTL = security.DefaultSecondFactorTTL
	}
	return &AuthService{Deps: d, now: time.Now}
}

// WithClock returns a copy of s that reads time from now. Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	cp := *s
	cp.now = now
	return &cp
}

// Login authenticates with email and password. Locked accounts are rejected before the password
// is checked. A wrong password counts toward the lock threshold; the failure that reaches it
// returns *lockout.AccountLockedError.
func (s *AuthService) Login(ctx context.Context, p LoginParams) (*AuthResult, error) {
	email := identitydomain.NormalizeEmail(p.Email)
	if email == "" || p.Password == "" {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.Identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		_ = s.Hasher.VerifyUnknown([]byte(p.Password))
		s.recordAttempt(ctx, email, p.IP, loginattemptdomain.FailureInvalidCredentials)
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventLoginFailed, Email: email, IP: p.IP, Reason: string(loginattemptdomain.FailureInvalidCredentials)})
		return nil, ErrInvalidCredentials
	}

	if err := s.Lock.Check(ctx, ident.ID); err != nil {
		return nil, s.lockedLogin(ctx, ident, email, p.IP, err)
	}

	if err := s.Hasher.Verify(ident.PasswordHash, []byte(p.Password)); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			return nil, err
		}
		return nil, s.failedPassword(ctx, ident, email, p.IP)
	}
	if ident.Status != identitydomain.StatusActive {
		s.recordAttempt(ctx, email, p.IP, loginattemptdomain.FailureAccountDisabled)
		return nil, ErrInvalidCredentials
	}
	// A lock taken by concurrent failures after the Check above wins over this password.
	if err := s.Lock.OnSuccess(ctx, ident.ID); err != nil {
		return nil, s.lockedLogin(ctx, ident, email, p.IP, err)
	}

	if p.OrgID > 0 {
		m, err := s.Memberships.GetByIdentityAndOrg(ctx, ident.ID, p.OrgID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, ErrNotOrgMember
		}
	}

	if ident.TwoFactorEnabled {
		return s.startSecondFactor(ctx, ident, p)
	}
	s.recordAttemptSuccess(ctx, email, p.IP)
	res, err := s.issueSession(ctx, ident.ID, p.OrgID, p.IP, p.Device)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventLoginSucceeded, IdentityID: ident.ID, OrgID: p.OrgID, SessionID: res.SessionID, IP: p.IP})
	return res, nil
}

// lockedLogin logs and emits a rejected sign-in when err is *lockout.AccountLockedError and returns err.
func (s *AuthService) lockedLogin(ctx context.Context, ident *identitydomain.Identity, email, ip string, err error) error {
	var locked *lockout.AccountLockedError
	if errors.As(err, &locked) {
		s.recordAttempt(ctx, email, ip, loginattemptdomain.FailureAccountLocked)
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventLoginFailed, IdentityID: ident.ID, Email: email, IP: ip, Reason: string(loginattemptdomain.FailureAccountLocked)})
	}
	return err
}

func (s *AuthService) failedPassword(ctx context.Context, ident *identitydomain.Identity, email, ip string) error {
	st, err := s.Lock.OnFailedAttempt(ctx, ident.ID)
	if err != nil {
		return err
	}
	s.recordAttempt(ctx, email, ip, loginattemptdomain.FailureInvalidCredentials)
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventLoginFailed, IdentityID: ident.ID, Email: email, IP: ip, Reason: string(loginattemptdomain.FailureInvalidCredentials)})
	if st.LockedAt(s.now()) {
		zerolog.Ctx(ctx).Warn().Str("identity_id", ident.ID).Time("locked_until", st.LockedUntil).Msg("auth: account locked after repeated failures")
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventAccountLocked, IdentityID: ident.ID, Email: email, IP: ip})
		return &lockout.AccountLockedError{Until: st.LockedUntil}
	}
	return ErrInvalidCredentials
}

func (s *AuthService) startSecondFactor(ctx context.Context, ident *identitydomain.Identity, p LoginParams) (*AuthResult, error) {
	code, err := mfa.GenerateCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ch := &mfadomain.Challenge{
		ID:         uuid.New().String(),
		IdentityID: ident.ID,
		OrgID:      p.OrgID,
		CodeHash:   mfa.HashCode(code),
		IP:         p.IP,
		Device:     p.Device,
		ExpiresAt:  now.Add(s.SecondFactorTTL),
		CreatedAt:  now,
	}
	if err := s.Challenges.Create(ctx, ch); err != nil {
		return nil, err
	}
	tmp, err := s.Tokens.IssueSecondFactor(ident.ID, ch.ID, s.SecondFactorTTL)
	if err != nil {
		return nil, err
	}
	if err := s.Notifier.Send(ctx, notify.Message{
		Kind:      notify.KindSecondFactorCode,
		To:        ident.Email,
		Code:      code,
		ExpiresAt: ch.ExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("send second factor code: %w", err)
	}
	return &AuthResult{
		SecondFactorRequired: true,
		TemporaryToken:       tmp.Token,
		ExpiresAt:            tmp.ExpiresAt,
		IdentityID:           ident.ID,
		OrgID:                p.OrgID,
	}, nil
}

// VerifySecondFactor completes a sign-in started by Login. Wrong codes count against the
// second-factor rate limit for the identity; once exhausted, *ratelimit.TooManyRequestsError
// is returned until the window rolls over.
func (s *AuthService) VerifySecondFactor(ctx context.Context, temporaryToken, code, ip, device string) (*AuthResult, error) {
	v, err := s.Tokens.Validate(temporaryToken)
	if err != nil || v.Claims.Type != security.TokenTypeSecondFactor || v.Claims.ChallengeID == "" {
		return nil, ErrInvalidSecondFactor
	}
	identityID := v.IdentityID
	// The attempt is counted before the code is compared; a correct code clears the budget.
	if err := s.Limiter.Reserve(ratelimit.ActionSecondFactor, identityID); err != nil {
		s.recordAttemptFor(ctx, identityID, ip, loginattemptdomain.FailureRateLimited)
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventRateLimited, IdentityID: identityID, IP: ip, Reason: ratelimit.ActionSecondFactor})
		return nil, err
	}
	if err := s.Lock.Check(ctx, identityID); err != nil {
		return nil, err
	}

	ch, err := s.Challenges.GetByID(ctx, v.Claims.ChallengeID)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.IdentityID != identityID || ch.Expired(s.now()) || !mfa.CodeMatches(strings.TrimSpace(code), ch.CodeHash) {
		s.recordAttemptFor(ctx, identityID, ip, loginattemptdomain.FailureSecondFactor)
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventSecondFactorFailed, IdentityID: identityID, IP: ip})
		return nil, ErrInvalidSecondFactor
	}

	if err := s.Challenges.Delete(ctx, ch.ID); err != nil {
		return nil, err
	}
	s.Limiter.Clear(ratelimit.ActionSecondFactor, identityID)
	s.recordAttemptFor(ctx, identityID, ip, "")
	if device == "" {
		device = ch.Device
	}
	res, err := s.issueSession(ctx, identityID, ch.OrgID, ip, device)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventLoginSucceeded, IdentityID: identityID, OrgID: ch.OrgID, SessionID: res.SessionID, IP: ip})
	return res, nil
}

// Refresh rotates a refresh token: the old session is revoked and a new one recorded.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, device string) (*AuthResult, error) {
	v, err := s.Tokens.Validate(refreshToken)
	if err != nil || v.Claims.Type != security.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.Sessions.Verify(ctx, v.TokenID); err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.Lock.Check(ctx, v.IdentityID); err != nil {
		return nil, err
	}
	// Only the request that flips the old session to revoked may rotate it.
	rotated, err := s.Sessions.RevokeIfActive(ctx, v.TokenID)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrInvalidRefreshToken
	}
	return s.issueSession(ctx, v.IdentityID, v.Claims.OrgID, ip, device)
}

// Logout revokes the session of refreshToken, or when it is empty the session of the access
// token the request was authenticated with. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	var sessionID string
	if refreshToken != "" {
		v, err := s.Tokens.Validate(refreshToken)
		if err != nil {
			return nil
		}
		sessionID = v.TokenID
	} else if id, ok := interceptors.GetSessionID(ctx); ok {
		sessionID = id
	}
	if sessionID == "" {
		return nil
	}
	if err := s.Sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	identityID, _ := interceptors.GetIdentityID(ctx)
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventSessionRevoked, IdentityID: identityID, SessionID: sessionID, Reason: "logout"})
	return nil
}

// LogoutAll revokes every session of the calling identity and returns how many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context) (int64, error) {
	identityID, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return 0, rbac.ErrUnauthenticated
	}
	n, err := s.Sessions.RevokeAll(ctx, identityID)
	if err != nil {
		return 0, err
	}
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventSessionRevoked, IdentityID: identityID, Reason: "logout_all"})
	return n, nil
}

// ListSessions returns the calling identity's active sessions.
func (s *AuthService) ListSessions(ctx context.Context) ([]*sessiondomain.Session, error) {
	identityID, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return nil, rbac.ErrUnauthenticated
	}
	return s.Sessions.ListActive(ctx, identityID)
}

// RevokeSession revokes one of the caller's own sessions. Sessions of other identities are
// reported as not found.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID string) error {
	identityID, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return rbac.ErrUnauthenticated
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.IdentityID != identityID {
		return ErrSessionNotFound
	}
	if err := s.Sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventSessionRevoked, IdentityID: identityID, SessionID: sessionID, Reason: "user"})
	return nil
}

// ResendVerification sends a new verification email. Requests are counted per address whether
// or not the address is registered, and unknown or already verified addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email, ip string) error {
	email = identitydomain.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidCredentials
	}
	if err := s.Limiter.Reserve(ratelimit.ActionVerificationEmail, email); err != nil {
		s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventRateLimited, Email: email, IP: ip, Reason: ratelimit.ActionVerificationEmail})
		return err
	}

	ident, err := s.Identities.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if ident == nil || ident.EmailVerified {
		return nil
	}
	tok, err := s.Tokens.IssueEmailVerification(ident.ID, 0)
	if err != nil {
		return err
	}
	if err := s.Notifier.Send(ctx, notify.Message{
		Kind:      notify.KindEmailVerification,
		To:        ident.Email,
		Code:      tok.Token,
		ExpiresAt: tok.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// ConfirmVerification marks the identity of a verification token as verified.
func (s *AuthService) ConfirmVerification(ctx context.Context, token string) error {
	v, err := s.Tokens.Validate(token)
	if err != nil || v.Claims.Type != security.TokenTypeEmailVerification {
		return ErrInvalidVerificationToken
	}
	ident, err := s.Identities.GetByID(ctx, v.IdentityID)
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrInvalidVerificationToken
	}
	return s.Identities.MarkEmailVerified(ctx, ident.ID)
}

// Unlock clears the lock and failure counter of identityID. The caller must administer the
// current tenant and the target must be a member of it.
func (s *AuthService) Unlock(ctx context.Context, identityID string) (*UnlockResult, error) {
	if s.Authz == nil {
		return nil, errors.New("auth: authorization guard not configured")
	}
	if err := s.Authz.RequireOrgAdmin(ctx); err != nil {
		return nil, err
	}
	orgID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Memberships.GetByIdentityAndOrg(ctx, identityID, orgID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotOrgMember
	}
	ident, err := s.Identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrNotOrgMember
	}
	if err := s.Lock.Reset(ctx, identityID); err != nil {
		return nil, err
	}
	res := &UnlockResult{IdentityID: identityID}
	if s.Attempts != nil {
		n, err := s.Attempts.CountFailuresSince(ctx, ident.Email, s.now().Add(-recentFailuresWindow))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("auth: count recent failures")
		}
		res.RecentFailures = n
	}
	admin, _ := interceptors.GetIdentityID(ctx)
	zerolog.Ctx(ctx).Info().Str("identity_id", identityID).Str("unlocked_by", admin).Int64("organization_id", orgID).Msg("auth: account unlocked")
	s.emit(ctx, &telemetrydomain.SecurityEvent{Type: telemetrydomain.EventAccountUnlocked, IdentityID: identityID, OrgID: orgID, Reason: "admin"})
	return res, nil
}

func (s *AuthService) issueSession(ctx context.Context, identityID string, orgID int64, ip, device string) (*AuthResult, error) {
	pair, err := s.Tokens.IssuePair(identityID, orgID, s.AccessTTL, s.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Record(ctx, sessionservice.RecordParams{
		IdentityID: identityID,
		TokenID:    pair.Access.TokenID,
		OrgID:      orgID,
		IssuedAt:   pair.Refresh.IssuedAt,
		ExpiresAt:  pair.Refresh.ExpiresAt,
		IP:         ip,
		Device:     device,
	}); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}
	return &AuthResult{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		ExpiresAt:    pair.Access.ExpiresAt,
		SessionID:    pair.Access.TokenID,
		IdentityID:   identityID,
		OrgID:        orgID,
	}, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email, ip string, reason loginattemptdomain.FailureReason) {
	if s.Attempts == nil {
		return
	}
	a := &loginattemptdomain.Attempt{
		ID:            uuid.New().String(),
		Email:         email,
		IP:            ip,
		Success:       reason == "",
		FailureReason: reason,
		AttemptedAt:   s.now().UTC(),
	}
	if err := s.Attempts.Create(ctx, a); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("auth: record login attempt")
	}
}

func (s *AuthService) recordAttemptSuccess(ctx context.Context, email, ip string) {
	s.recordAttempt(ctx, email, ip, "")
}

// recordAttemptFor records an attempt for the second-factor step, where only the identity id is known.
func (s *AuthService) recordAttemptFor(ctx context.Context, identityID, ip string, reason loginattemptdomain.FailureReason) {
	if s.Attempts == nil {
		return
	}
	ident, err := s.Identities.GetByID(ctx, identityID)
	if err != nil || ident == nil {
		return
	}
	s.recordAttempt(ctx, ident.Email, ip, reason)
}

func (s *AuthService) emit(ctx context.Context, ev *telemetrydomain.SecurityEvent) {
	if ev.Source == "" {
		ev.Source = eventSource
	}
	telemetry.EmitAsync(s.Events, ctx, ev)
}
