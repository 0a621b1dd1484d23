package auth

import "fmt"

// Role is one of the closed set of user roles known to the system.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RolePrincipal Role = "Principal"
	RoleHOD       Role = "HOD"
	RoleTeacher   Role = "Teacher"
	RoleStudent   Role = "Student"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RolePrincipal, RoleHOD, RoleTeacher, RoleStudent:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the authenticated user context carried into every workflow
// call. It is built once per request from the verified token claims and is
// never mutated downstream.
type Identity struct {
	ID    string
	Role  Role
	Name  string
	Email string
}
