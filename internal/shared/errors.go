package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrImmutable indicates an attempt to mutate a validated record.
	ErrImmutable = errors.New("record is immutable once validated")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors to messages that may be shown to
// callers. Anything unrecognised collapses to a generic message so that
// persistence details never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrForbidden):
		return "insufficient permissions"
	case errors.Is(err, ErrImmutable):
		return "record can no longer be modified"
	case errors.Is(err, ErrValidation):
		return "invalid input"
	default:
		return "internal error"
	}
}
