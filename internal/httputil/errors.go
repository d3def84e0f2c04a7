package httputil

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"collabhub/backend/internal/lockout"
	"collabhub/backend/internal/platform/rbac"
	"collabhub/backend/internal/ratelimit"
	"collabhub/backend/internal/tenant"
)

// HTTPError contains an HTTP status code and wrapped error.
type HTTPError struct {
	// HTTP status codes as registered with IANA.
	Status int
	// Err is the wrapped error.
	Err error
	// RetryAfter, when positive, is sent as the Retry-After header in whole seconds.
	RetryAfter time.Duration
}

// NewError returns an error that contains a HTTP status and error.
func NewError(status int, err error) error {
	return &HTTPError{Status: status, Err: err}
}

// Error implements the `error` interface.
func (e *HTTPError) Error() string {
	return http.StatusText(e.Status) + ": " + e.Err.Error()
}

// Unwrap implements the `error` Unwrap interface.
func (e *HTTPError) Unwrap() error { return e.Err }

type errorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse replies to the request with the error as JSON. Server errors are logged and
// their detail is not sent to the client.
func (e *HTTPError) ErrorResponse(w http.ResponseWriter, r *http.Request) {
	msg := e.Err.Error()
	if e.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(e.Err).Int("status", e.Status).Msg("http: request failed")
		msg = http.StatusText(e.Status)
	}
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(e.RetryAfter), 10))
	}
	RenderJSON(w, e.Status, errorResponse{
		Status:    e.Status,
		Error:     msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// Error maps err to an HTTPError and writes it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ToHTTPError(err).ErrorResponse(w, r)
}

// ToHTTPError maps the security core's errors to statuses: rate limits to 429, locked
// accounts to 423 (both with Retry-After), missing tenant to 400, no caller to 401 and denied
// actions to 403. Anything else is a 500.
func ToHTTPError(err error) *HTTPError {
	var (
		he      *HTTPError
		tooMany *ratelimit.TooManyRequestsError
		locked  *lockout.AccountLockedError
		denied  *rbac.UnauthorizedActionError
	)
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &tooMany):
		return &HTTPError{Status: http.StatusTooManyRequests, Err: err, RetryAfter: tooMany.RetryAfter}
	case errors.As(err, &locked):
		return &HTTPError{Status: http.StatusLocked, Err: err, RetryAfter: locked.RetryAfter(time.Now())}
	case errors.Is(err, tenant.ErrContextMissing):
		return &HTTPError{Status: http.StatusBadRequest, Err: errors.New("organization id is required")}
	case errors.Is(err, rbac.ErrUnauthenticated):
		return &HTTPError{Status: http.StatusUnauthorized, Err: err}
	case errors.As(err, &denied):
		return &HTTPError{Status: http.StatusForbidden, Err: err}
	default:
		return &HTTPError{Status: http.StatusInternalServerError, Err: err}
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
