package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the caller has no valid session
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation means a required field is missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrNotFoundOrForbidden means the record does not exist or belongs to someone else.
	// The two cases are never distinguished to callers.
	ErrNotFoundOrForbidden = errors.New("transaction not found or unauthorized")

	// ErrNotFound means no record matches a share token
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable means the backing store could not be reached or failed
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConflict means the write collides with existing state
	ErrConflict = errors.New("conflict")

	// ErrShareTokenImmutable is returned when a patch tries to replace an existing share token
	ErrShareTokenImmutable = fmt.Errorf("%w: share token is already set", ErrConflict)
)

// ValidationError describes the first invalid field of a write
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError wraps a driver failure as ErrStorageUnavailable
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
