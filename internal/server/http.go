package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"collabhub/backend/internal/server/interceptors"
)

// Routable registers its routes on a chi router.
type Routable interface {
	Routes(r chi.Router)
}

// HTTPDeps holds the collaborators of the HTTP API.
type HTTPDeps struct {
	Logger zerolog.Logger
	Auth   *interceptors.Authenticator
	// Health serves GET /healthz. If nil the route always answers 200.
	Health http.Handler
	// Handlers are mounted after the shared middleware.
	Handlers []Routable
}

// NewHTTPHandler returns the HTTP API. Middleware order: request id, real ip, request logging,
// panic recovery, tenant resolution, bearer authentication.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(interceptors.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(interceptors.TenantHTTP)
	r.Use(interceptors.AuthHTTP(deps.Auth))

	health := deps.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	r.Method(http.MethodGet, "/healthz", health)
	for _, h := range deps.Handlers {
		h.Routes(r)
	}
	return otelhttp.NewHandler(r, "collabhub.http")
}
