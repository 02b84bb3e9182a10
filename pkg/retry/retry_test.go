package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRunner(attempts int) *Runner {
	return &Runner{MaxAttempts: attempts, Delay: time.Millisecond, Log: zerolog.Nop()}
}

func TestDoShortCircuitsOnSuccess(t *testing.T) {
	calls := 0
	err := testRunner(3).Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesExactlyMaxAttempts(t *testing.T) {
	boom := errors.New("keyserver unreachable")
	calls := 0
	err := testRunner(3).Do(context.Background(), "fetch-key", func(context.Context) error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected final error to wrap the action error, got %v", err)
	}
}

func TestDoSucceedsMidway(t *testing.T) {
	calls := 0
	err := testRunner(5).Do(context.Background(), "sync", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoObservesCancellationBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	runner := testRunner(5)
	runner.Delay = 50 * time.Millisecond
	err := runner.Do(ctx, "fetch", func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoReportsAttempts(t *testing.T) {
	var attempts []int
	runner := testRunner(2)
	runner.OnAttempt = func(action string, attempt int) {
		if action != "fetch" {
			t.Errorf("unexpected action %q", action)
		}
		attempts = append(attempts, attempt)
	}
	_ = runner.Do(context.Background(), "fetch", func(context.Context) error {
		return errors.New("fail")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected attempt sequence %v", attempts)
	}
}
