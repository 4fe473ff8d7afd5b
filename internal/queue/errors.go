package queue

import (
	"errors"
	"fmt"
)

// Engine errors. Operations wrap these with details, so callers should
// compare with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrCapacityExceeded    = errors.New("queue is full")
	ErrDuplicateEntry      = errors.New("customer is already in queue")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotFound            = errors.New("not found")
	ErrEmptyQueue          = errors.New("no waiting entries")
	ErrConcurrencyConflict = errors.New("queue was modified concurrently")
	ErrQueueInactive       = errors.New("queue is not accepting entries")
	ErrForbidden           = errors.New("operation not permitted")

	// ErrEntryNotFound is the ErrNotFound of a missing entry in a queue that exists.
	ErrEntryNotFound = fmt.Errorf("entry %w", ErrNotFound)

	// ErrCorruptState means an invariant did not hold after a mutation.
	// It is never retried.
	ErrCorruptState = errors.New("queue state is corrupt")
)

// IsValidationError checks if the error is caused by caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflictError checks if the error is a state conflict the caller can not retry blindly
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsTransient checks if the operation may succeed when retried later
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
