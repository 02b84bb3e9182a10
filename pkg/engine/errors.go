package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/pacprep/pacprep/pkg/confedit"
	"github.com/pacprep/pacprep/pkg/syspkg"
)

// SafetyError reports a failed precondition check. Any safety failure
// aborts the run before the first mutating side effect.
type SafetyError struct {
	// Check names the failed check.
	Check string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *SafetyError) Error() string {
	return "safety check " + e.Check + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SafetyError) Unwrap() error { return e.Err }

// abortsRun reports whether err must end the pipeline instead of being
// recorded against a component. Only two mid-run conditions qualify: a
// mutation whose rollback also failed (the file may be corrupt and every
// later step would build on it) and cancellation.
func abortsRun(err error) bool {
	if err == nil {
		return false
	}
	if confedit.IsRollbackFailure(err) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// transientInstall reports whether an install failure looks like a
// network condition worth retrying, judged from the tool's diagnostic
// output. Everything else (conflicts, missing packages, signature
// failures) is permanent for this run.
func transientInstall(err error) bool {
	var ierr *syspkg.InstallError
	if !errors.As(err, &ierr) {
		return false
	}
	diag := strings.ToLower(ierr.Diagnostic)
	for _, marker := range []string{
		"failed retrieving file",
		"download timed out",
		"connection timed out",
		"temporary failure in name resolution",
		"operation too slow",
	} {
		if strings.Contains(diag, marker) {
			return true
		}
	}
	return false
}
