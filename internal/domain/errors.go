package domain

import "errors"

// Sentinel errors for the control plane's error taxonomy. The API layer maps
// these onto HTTP status codes and stable error codes; everything else wraps
// them with fmt.Errorf("...: %w", err) so callers can branch with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrForbidden             = errors.New("forbidden")
	ErrDuplicateStore        = errors.New("store name already in use")
	ErrDuplicateUser         = errors.New("email already registered")
	ErrQuotaExceeded         = errors.New("store quota exceeded")
	ErrRateLimited           = errors.New("creation cooldown active")
	ErrUnsupportedEngine     = errors.New("unsupported store engine")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrConflictingOperation  = errors.New("conflicting operation in progress")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrValidation            = errors.New("validation failed")
)
