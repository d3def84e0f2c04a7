package rbac

import "strings"

// Actions on roles.
const (
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// systemRoles cannot be edited or deleted by anyone, super-admins included.
var systemRoles = map[string]struct{}{
	"owner":  {},
	"admin":  {},
	"member": {},
}

// IsSystemRoleProtected reports whether name is a built-in role. Matching ignores case and
// surrounding whitespace.
func IsSystemRoleProtected(name string) bool {
	_, ok := systemRoles[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// RequireRoleEditable fails with *UnauthorizedActionError when name is a system role.
func RequireRoleEditable(name, action string) error {
	if IsSystemRoleProtected(name) {
		return &UnauthorizedActionError{Resource: ResourceRole + ":" + strings.TrimSpace(name), Action: action}
	}
	return nil
}

// CanReadRole reports whether a role may be read. Every role, protected or not, is readable.
func CanReadRole(string) bool { return true }
