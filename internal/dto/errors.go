package dto

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("errRecordNotFound")
	ErrAlreadyExists = errors.New("errAlreadyExists")

	// ErrDuplicateCandidate — same matricule proposed twice for one request.
	ErrDuplicateCandidate = errors.New("errDuplicateCandidate")

	// ErrConflict — a concurrent writer won; re-fetch and retry.
	ErrConflict = errors.New("errConflict")

	// ErrInvalidTransition — workflow misuse, surfaced to the caller,
	// never coerced into a valid state.
	ErrInvalidTransition = errors.New("errInvalidTransition")

	// ErrInvalidInput — scoring called with incomplete identity fields.
	ErrInvalidInput = errors.New("errInvalidInput")

	// ErrSyncRunning — at most one sync run system-wide.
	ErrSyncRunning = errors.New("errSyncAlreadyRunning")
)

// ValidationError carries a field-level message for the UI layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field '%s' %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ExternalSystemError — Kelio unreachable or malformed response.
// Retryable per policy inside the sync run.
type ExternalSystemError struct {
	Op  string
	Err error
}

func (e *ExternalSystemError) Error() string {
	return fmt.Sprintf("kelio: %s: %v", e.Op, e.Err)
}

func (e *ExternalSystemError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the sync loop may retry after err.
func IsRetryable(err error) bool {
	var ext *ExternalSystemError
	return errors.As(err, &ext)
}
