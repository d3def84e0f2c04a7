// Package handler exposes the caller's own sessions over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"collabhub/backend/internal/httputil"
	identityservice "collabhub/backend/internal/identity/service"
	"collabhub/backend/internal/server/interceptors"
	"collabhub/backend/internal/session/domain"
)

// Service lists and revokes the caller's sessions.
type Service interface {
	ListSessions(ctx context.Context) ([]*domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// SessionHandler serves /v1/sessions.
type SessionHandler struct {
	svc Service
}

// NewSessionHandler returns a SessionHandler.
func NewSessionHandler(svc Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Routes registers the handler's routes on r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(httputil.RequireIdentity)
		r.Get("/", h.list)
		r.Delete("/{tokenID}", h.revoke)
	})
}

type sessionResponse struct {
	ID             string    `json:"id"`
	OrganizationID int64     `json:"organization_id,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Device         string    `json:"device,omitempty"`
	Current        bool      `json:"current"`
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	current, _ := interceptors.GetSessionID(r.Context())
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:             s.ID,
			OrganizationID: s.OrgID,
			IssuedAt:       s.IssuedAt.UTC(),
			ExpiresAt:      s.ExpiresAt.UTC(),
			IPAddress:      s.IPAddress,
			Device:         s.Device,
			Current:        s.ID == current,
		})
	}
	httputil.RenderJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

func (h *SessionHandler) revoke(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RevokeSession(r.Context(), chi.URLParam(r, "tokenID"))
	if errors.Is(err, identityservice.ErrSessionNotFound) {
		err = httputil.NewError(http.StatusNotFound, err)
	}
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
