package rbac

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when a check needs a caller but the context carries none.
var ErrUnauthenticated = errors.New("rbac: authenticated identity required")

// Resources named in authorization failures.
const (
	ResourceOrganization = "organization"
	ResourceProject      = "project"
	ResourceRole         = "role"
	ResourcePlatform     = "platform"
)

// UnauthorizedActionError reports that the caller may not perform Action on Resource.
type UnauthorizedActionError struct {
	Resource string
	Action   string
}

func (e *UnauthorizedActionError) Error() string {
	return fmt.Sprintf("not authorized to %s %s", e.Action, e.Resource)
}

// IsUnauthorized reports whether err is (or wraps) an *UnauthorizedActionError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedActionError
	return errors.As(err, &ue)
}
