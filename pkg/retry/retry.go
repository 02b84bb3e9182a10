// Package retry runs named, network-dependent actions a fixed number of
// times with a fixed delay between attempts. Actions must be safely
// re-runnable (re-fetching a signing key, re-syncing an index); the runner
// provides no compensation logic for partial effects.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAttempts is the total number of attempts when none is configured.
const DefaultAttempts = 3

// DefaultDelay is the pause between attempts when none is configured.
const DefaultDelay = 5 * time.Second

// Runner executes actions with bounded retries.
type Runner struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Log receives per-attempt diagnostics.
	Log zerolog.Logger

	// OnAttempt, when set, is invoked before every attempt. Used to feed
	// retry metrics.
	OnAttempt func(action string, attempt int)
}

// NewRunner returns a Runner with the default attempt count and delay.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{MaxAttempts: DefaultAttempts, Delay: DefaultDelay, Log: log}
}

// Do invokes fn until it succeeds, up to MaxAttempts total attempts,
// sleeping Delay between attempts. It short-circuits on first success and
// returns the last error when every attempt fails. An in-flight attempt is
// never interrupted; cancellation is only observed between attempts.
func (r *Runner) Do(ctx context.Context, action string, fn func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if r.OnAttempt != nil {
			r.OnAttempt(action, attempt)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.Log.Info().Str("action", action).Int("attempt", attempt).Msg("action succeeded after retry")
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		r.Log.Warn().
			Str("action", action).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Err(lastErr).
			Dur("delay", r.Delay).
			Msg("action failed, retrying")

		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return fmt.Errorf("%s interrupted after attempt %d: %w", action, attempt, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", action, attempts, lastErr)
}
