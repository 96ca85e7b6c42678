// Package apperr holds the error kinds shared by the store, the services and the HTTP layer.
// Callers wrap a kind with context (fmt.Errorf("%w: ...", apperr.ErrValidation)) and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("operation not allowed for the current user")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("authentication required")
)

// Message strips the kind prefix so clients see only the specific reason.
func Message(err error) string {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrForbidden, ErrInvalidState, ErrConflict, ErrUnauthorized} {
		prefix := kind.Error() + ": "
		msg := err.Error()
		if errors.Is(err, kind) && len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return err.Error()
}
