package confedit

import (
	"errors"
	"fmt"
)

// ErrConcurrentWrite is returned when another writer touched the target
// file while an edit was in flight. The edit is abandoned before the
// replace step, so the file holds the other writer's content.
var ErrConcurrentWrite = errors.New("configuration file modified by another writer during edit")

// MutationError reports a failed edit. When RollbackFailed is false the
// target file was left as the pre-operation document; when true the
// rollback itself failed and the file state must be treated as
// inconsistent. That is the only mutation outcome severe enough to abort
// a whole run.
type MutationError struct {
	// Path is the configuration file the edit targeted.
	Path string

	// Diagnostic is the raw diagnostic text from the validator.
	Diagnostic string

	// RollbackFailed reports that restoring the pre-operation backup
	// failed after the validation failure.
	RollbackFailed bool

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	if e.RollbackFailed {
		return fmt.Sprintf("edit of %s failed and rollback did not complete, file may be inconsistent: %s", e.Path, e.Diagnostic)
	}
	return fmt.Sprintf("edit of %s rejected, original restored: %s", e.Path, e.Diagnostic)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error { return e.Err }

// IsRollbackFailure reports whether err is a MutationError whose rollback
// failed.
func IsRollbackFailure(err error) bool {
	var merr *MutationError
	return errors.As(err, &merr) && merr.RollbackFailed
}
