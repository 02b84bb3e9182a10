package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacprep/pacprep/pkg/syspkg"
)

// Heartbeat keeps the elevated-privilege timestamp fresh for the duration
// of a run so long package transactions never stall on a prompt. It is a
// plain goroutine tied to the run context; the orchestrator stops it when
// the pipeline reaches a terminal stage.
type Heartbeat struct {
	// Interval between refreshes. Defaults to one minute.
	Interval time.Duration

	// Beat performs one refresh. Defaults to a non-interactive sudo
	// timestamp refresh.
	Beat func(ctx context.Context) error

	// Log receives refresh failures.
	Log zerolog.Logger
}

// NewHeartbeat returns a heartbeat refreshing sudo's timestamp through
// the given runner.
func NewHeartbeat(runner syspkg.Runner, log zerolog.Logger) *Heartbeat {
	return &Heartbeat{
		Interval: time.Minute,
		Beat: func(ctx context.Context) error {
			_, err := runner.Run(ctx, "sudo", "-nv")
			return err
		},
		Log: log,
	}
}

// Start launches the refresh loop and returns its stop function. One beat
// runs immediately; failures are logged and the loop keeps going, because
// a missed refresh is recoverable until the timestamp actually expires.
func (h *Heartbeat) Start(ctx context.Context) (stop func()) {
	interval := h.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		h.beat(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.beat(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if err := h.Beat(ctx); err != nil && ctx.Err() == nil {
		h.Log.Warn().Err(err).Msg("privilege keep-alive failed")
	}
}
