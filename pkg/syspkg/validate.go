package syspkg

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// ConfValidator asks the toolchain's parser to check a candidate
// configuration file. It runs the parser in read-only mode and inspects the
// diagnostics, so validation never mutates system state.
type ConfValidator struct {
	// Bin is the parser binary, "pacman-conf" by default.
	Bin string

	// Runner executes the subprocess calls.
	Runner Runner

	// Log receives validation diagnostics.
	Log zerolog.Logger
}

// NewConfValidator returns a validator using the given runner.
func NewConfValidator(runner Runner, log zerolog.Logger) *ConfValidator {
	return &ConfValidator{Bin: "pacman-conf", Runner: runner, Log: log}
}

// Validate parses the candidate file. A non-zero exit or an error marker in
// the diagnostics referencing the candidate yields a ValidationError
// carrying the raw diagnostic text.
func (v *ConfValidator) Validate(ctx context.Context, candidatePath string) error {
	out, err := v.Runner.Run(ctx, v.Bin, "--config", candidatePath)
	if err != nil {
		return &ValidationError{Path: candidatePath, Diagnostic: out.Combined()}
	}
	// The parser tolerates some malformed input, exiting zero while still
	// emitting error lines for the file under test.
	for _, raw := range strings.Split(out.Stderr, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "error:") || strings.Contains(trimmed, candidatePath) {
			return &ValidationError{Path: candidatePath, Diagnostic: strings.TrimSpace(out.Stderr)}
		}
	}
	return nil
}
