package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// WriteErrorKind classifies why the target rejected one version write.
type WriteErrorKind string

const (
	WriteErrorIntervalConflict   WriteErrorKind = "interval_conflict"
	WriteErrorValidationRejected WriteErrorKind = "validation_rejected"
	WriteErrorTransientFailure   WriteErrorKind = "transient_failure"
	WriteErrorNotFound           WriteErrorKind = "not_found"
)

// WriteError is the structured outcome of one failed version write. It is
// always surfaced in the migration report, never swallowed.
type WriteError struct {
	Kind     WriteErrorKind
	EntityID uuid.UUID
	Version  int64
	Message  string
	Err      error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write version %d for entity %s: %s (%s): %v", e.Version, e.EntityID, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("write version %d for entity %s: %s (%s)", e.Version, e.EntityID, e.Message, e.Kind)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same write can succeed.
func (e *WriteError) Transient() bool {
	return e.Kind == WriteErrorTransientFailure
}

// AsWriteError unwraps err into a *WriteError when possible.
func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// InvariantError reports a computed interval sequence that violates the
// partition invariant. It marks an internal bug and must never be written.
type InvariantError struct {
	EntityKey string
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("interval invariant violated for entity %s: %s", e.EntityKey, e.Reason)
}

// ExtractionError means the source streams for an entity could not be
// fetched at all; the entity gets no versions and terminates Failed.
type ExtractionError struct {
	EntityKey string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract events for entity %s: %v", e.EntityKey, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
