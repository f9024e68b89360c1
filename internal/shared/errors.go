package shared

import (
	"errors"
	"fmt"
)

// PermissionDeniedMessage is the single user-facing denial text. Every
// authorization failure renders this exact message so the response never
// reveals which layer produced the denial.
const PermissionDeniedMessage = "You do not have permission to perform this action. Please contact your administrator."

var (
	// ErrNotFound indicates a record absent or outside the caller's tenant.
	// The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates a request without an authenticated caller.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates an authenticated caller with insufficient rights.
	ErrForbidden = errors.New("forbidden")
	// ErrStateConflict indicates an already-decided request or an unreachable
	// transition target.
	ErrStateConflict = errors.New("state conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError reports missing or malformed request fields.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

// ResolutionError marks an infrastructure failure during permission
// resolution. Callers must treat it as deny-all plus a 5xx, never as a
// silent 403.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("permission resolution failed: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NewResolutionError wraps an infrastructure failure.
func NewResolutionError(err error) *ResolutionError {
	return &ResolutionError{Err: err}
}
