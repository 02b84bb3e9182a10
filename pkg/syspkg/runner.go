// Package syspkg shells out to the system package-management toolchain:
// the primary source tool (pacman), a secondary source helper (an AUR
// helper such as paru or yay), the trust-store tool (pacman-key) and the
// configuration parser (pacman-conf). All of them are treated as opaque
// subprocess interfaces returning an exit status and diagnostic text.
package syspkg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output captures the result of one subprocess invocation.
type Output struct {
	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error, the raw diagnostic text
	// surfaced to the user on failure.
	Stderr string

	// ExitCode is the process exit status, -1 when the process did not run.
	ExitCode int

	// Duration is how long the invocation took.
	Duration time.Duration
}

// Combined returns stdout and stderr joined for diagnostics.
func (o Output) Combined() string {
	out := strings.TrimSpace(o.Stdout)
	errText := strings.TrimSpace(o.Stderr)
	switch {
	case out == "":
		return errText
	case errText == "":
		return out
	default:
		return out + "\n" + errText
	}
}

// Runner executes external commands. The interface exists so that every
// consumer can be tested against a fake without spawning processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// CommandObserver receives per-invocation timing, used to feed subprocess
// metrics.
type CommandObserver interface {
	ObserveCommand(tool string, duration time.Duration, success bool)
}

// ExecRunner runs commands via os/exec, capturing both output streams.
type ExecRunner struct {
	// Log receives a debug line per invocation.
	Log zerolog.Logger

	// Observer, when set, receives invocation timings.
	Observer CommandObserver
}

// Run executes the command and captures its output. A non-zero exit status
// is returned as an error from exec, with the captured output still
// populated so callers can surface the tool's diagnostics.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: duration,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if r.Observer != nil {
		r.Observer.ObserveCommand(name, duration, err == nil)
	}

	r.Log.Debug().
		Str("command", name).
		Strs("args", args).
		Int("exit_code", out.ExitCode).
		Dur("duration", duration).
		Msg("executed command")

	return out, err
}
