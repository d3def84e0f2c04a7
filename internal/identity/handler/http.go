// Package handler exposes the sign-in flows over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"collabhub/backend/internal/httputil"
	"collabhub/backend/internal/identity/service"
	membershipdomain "collabhub/backend/internal/membership/domain"
	"collabhub/backend/internal/notify"
	"collabhub/backend/internal/platform/rbac"
	"collabhub/backend/internal/server/interceptors"
	sessionservice "collabhub/backend/internal/session/service"
	"collabhub/backend/internal/tenant"
)

// maxDeviceLen bounds the device descriptor taken from the User-Agent header.
const maxDeviceLen = 255

// AuthService is the subset of service.AuthService used by the handler.
type AuthService interface {
	Login(ctx context.Context, p service.LoginParams) (*service.AuthResult, error)
	VerifySecondFactor(ctx context.Context, temporaryToken, code, ip, device string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, ip, device string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context) (int64, error)
	ResendVerification(ctx context.Context, email, ip string) error
	ConfirmVerification(ctx context.Context, token string) error
	Unlock(ctx context.Context, identityID string) (*service.UnlockResult, error)
}

// MembershipResolver returns the caller's membership in the current tenant.
type MembershipResolver interface {
	Membership(ctx context.Context) (*membershipdomain.Membership, error)
}

// Outbox exposes stored notifications to local environments.
type Outbox interface {
	Latest(to string, kind notify.Kind) (notify.Message, bool)
}

// AuthHandler serves /v1/auth and the tenant-scoped identity routes.
type AuthHandler struct {
	auth    AuthService
	members MembershipResolver
	outbox  Outbox
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(auth AuthService, members MembershipResolver) *AuthHandler {
	return &AuthHandler{auth: auth, members: members}
}

// WithDevOutbox enables GET /dev/outbox. Never call it in production.
func (h *AuthHandler) WithDevOutbox(o Outbox) *AuthHandler {
	h.outbox = o
	return h
}

// Routes registers the handler's routes on r.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/2fa/verify", h.verifySecondFactor)
		r.Post("/refresh", h.refresh)
		r.Post("/verification/resend", h.resendVerification)
		r.Post("/verification/confirm", h.confirmVerification)
		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireIdentity)
			r.Post("/logout", h.logout)
			r.Post("/logout-all", h.logoutAll)
		})
	})
	r.Route("/v1/organizations/{orgID}", func(r chi.Router) {
		r.Use(httputil.RequireIdentity)
		r.Get("/me", h.me)
		r.Post("/identities/{identityID}/unlock", h.unlock)
	})
	if h.outbox != nil {
		r.Get("/dev/outbox", h.devOutbox)
	}
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Device         string `json:"device,omitempty"`
	OrganizationID int64  `json:"organization_id,omitempty"`
}

type verifyRequest struct {
	TemporaryToken string `json:"temporary_token"`
	Code           string `json:"code"`
	Device         string `json:"device,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Device       string `json:"device,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type authResponse struct {
	AccessToken          string     `json:"access_token,omitempty"`
	RefreshToken         string     `json:"refresh_token,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	SessionID            string     `json:"session_id,omitempty"`
	IdentityID           string     `json:"identity_id"`
	OrganizationID       int64      `json:"organization_id,omitempty"`
	SecondFactorRequired bool       `json:"second_factor_required,omitempty"`
	TemporaryToken       string     `json:"temporary_token,omitempty"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	out := authResponse{
		AccessToken:          res.AccessToken,
		RefreshToken:         res.RefreshToken,
		SessionID:            res.SessionID,
		IdentityID:           res.IdentityID,
		OrganizationID:       res.OrgID,
		SecondFactorRequired: res.SecondFactorRequired,
		TemporaryToken:       res.TemporaryToken,
	}
	if !res.ExpiresAt.IsZero() {
		t := res.ExpiresAt.UTC()
		out.ExpiresAt = &t
	}
	return out
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), service.LoginParams{
		Email:    req.Email,
		Password: req.Password,
		OrgID:    req.OrganizationID,
		IP:       httputil.ClientIP(r),
		Device:   device(r, req.Device),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RenderJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *AuthHandler) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	res, err := h.auth.VerifySecondFactor(r.Context(), req.TemporaryToken, req.Code, httputil.ClientIP(r), device(r, req.Device))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RenderJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken, httputil.ClientIP(r), device(r, req.Device))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RenderJSON(w, http.StatusOK, toAuthResponse(res))
}

// logout revokes the session named by an optional refresh token, otherwise the caller's own.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, r, err)
			return
		}
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.auth.LogoutAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RenderJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

func (h *AuthHandler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email, httputil.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AuthHandler) confirmVerification(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := h.auth.ConfirmVerification(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	IdentityID     string `json:"identity_id"`
	OrganizationID int64  `json:"organization_id"`
	Role           string `json:"role"`
	Admin          bool   `json:"admin"`
}

// me returns the caller's role in the organization of the path.
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	m, err := h.members.Membership(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m == nil {
		writeError(w, r, &rbac.UnauthorizedActionError{Resource: rbac.ResourceOrganization, Action: "access"})
		return
	}
	identityID, _ := interceptors.GetIdentityID(r.Context())
	orgID, _ := tenant.OrganizationID(r.Context())
	httputil.RenderJSON(w, http.StatusOK, meResponse{
		IdentityID:     identityID,
		OrganizationID: orgID,
		Role:           string(m.Role),
		Admin:          m.Role.IsAdmin(),
	})
}

type unlockResponse struct {
	IdentityID     string `json:"identity_id"`
	RecentFailures int64  `json:"recent_failures"`
}

func (h *AuthHandler) unlock(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Unlock(r.Context(), chi.URLParam(r, "identityID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RenderJSON(w, http.StatusOK, unlockResponse{IdentityID: res.IdentityID, RecentFailures: res.RecentFailures})
}

func (h *AuthHandler) devOutbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := strings.ToLower(strings.TrimSpace(q.Get("to")))
	kind := notify.Kind(q.Get("kind"))
	if kind == "" {
		kind = notify.KindSecondFactorCode
	}
	msg, ok := h.outbox.Latest(to, kind)
	if !ok {
		httputil.Error(w, r, httputil.NewError(http.StatusNotFound, errors.New("no message")))
		return
	}
	httputil.RenderJSON(w, http.StatusOK, msg)
}

// writeError maps sign-in errors to statuses and defers everything else to httputil.Error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := 0
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidSecondFactor),
		errors.Is(err, service.ErrInvalidRefreshToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidVerificationToken):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotOrgMember):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrSessionNotFound):
		status = http.StatusNotFound
	}
	if status != 0 {
		err = httputil.NewError(status, err)
	}
	httputil.Error(w, r, err)
}

// device returns the client-supplied device descriptor, falling back to the User-Agent.
func device(r *http.Request, supplied string) string {
	d := strings.TrimSpace(supplied)
	if d == "" {
		d = strings.TrimSpace(r.UserAgent())
	}
	return sessionservice.Truncate(d, maxDeviceLen)
}
