package models

import "errors"

// The error taxonomy shared by stores, services, and handlers. Callers wrap
// these with context and test with errors.Is.
var (
	// ErrNotFound indicates a referenced identity or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor may not act on the record.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOperation indicates a self-targeting or nonsensical request.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrConflict indicates a state machine rule or uniqueness constraint was violated.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates the backing store could not be reached. It is the
	// only class an outer layer may retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Retryable reports whether err may be retried transparently by an outer layer.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
