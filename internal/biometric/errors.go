package biometric

import (
	"fmt"
	"strings"
)

// The workflow reports expected business-rule failures as typed errors so
// callers can map each to a distinct outcome. Only unexpected capability
// faults carry an underlying cause, and that cause is never shown verbatim
// to end users.

// AuthorizationError means a non-student role attempted a student-only
// operation. Never retried.
type AuthorizationError struct {
	Role string
	Op   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %s may not perform %s: students only", e.Role, e.Op)
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError means required input is missing or malformed. It names
// every offending field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid request: " + strings.Join(names, ", ")
}

// PreconditionError means an operation was attempted out of order, e.g.
// verifying before registering a face.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// VerificationError means the face match returned false. Verification is
// side-effect free, so the caller may retry freely.
type VerificationError struct{}

func (e *VerificationError) Error() string { return "face verification failed" }

// ConflictError means the repository rejected a duplicate attendance insert.
type ConflictError struct {
	SubjectCode string
}

func (e *ConflictError) Error() string {
	return "attendance already marked for " + e.SubjectCode
}

// CapabilityFault wraps an unexpected error from the face capability or the
// repository. The cause is logged server-side; Error returns a generic
// message safe to surface.
type CapabilityFault struct {
	Op  string
	Err error
}

func (e *CapabilityFault) Error() string {
	return "a system error occurred, please try again later"
}

func (e *CapabilityFault) Unwrap() error { return e.Err }
