package syspkg

import (
	"fmt"
	"strings"
)

// InstallError reports a failed install or removal. It always carries the
// raw diagnostic text from the underlying tool so that the failure shown to
// the user is attributable, never a generic message.
type InstallError struct {
	// Tool is the command that failed (pacman, paru, ...).
	Tool string

	// Packages are the packages the operation was asked to handle.
	Packages []string

	// Diagnostic is the raw combined output of the failed invocation.
	Diagnostic string

	// Err is the underlying process error.
	Err error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	msg := fmt.Sprintf("%s failed for %s", e.Tool, strings.Join(e.Packages, ", "))
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

// Unwrap returns the underlying process error.
func (e *InstallError) Unwrap() error { return e.Err }

// ValidationError reports that the toolchain rejected a candidate
// configuration file.
type ValidationError struct {
	// Path is the candidate file that was rejected.
	Path string

	// Diagnostic is the raw diagnostic text emitted by the parser.
	Diagnostic string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration %s rejected: %s", e.Path, e.Diagnostic)
}
