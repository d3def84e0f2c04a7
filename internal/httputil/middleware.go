package httputil

import (
	"net/http"

	"collabhub/backend/internal/platform/rbac"
	"collabhub/backend/internal/server/interceptors"
)

// RequireIdentity rejects requests that did not authenticate with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := interceptors.GetIdentityID(r.Context()); !ok {
			Error(w, r, rbac.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
