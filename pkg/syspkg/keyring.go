package syspkg

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Keyring drives the trust-store tool (pacman-key). Both operations are
// safely re-runnable, which is what makes them suitable retry targets.
type Keyring struct {
	// Bin is the trust-store binary, "pacman-key" by default.
	Bin string

	// Runner executes the subprocess calls.
	Runner Runner

	// Log receives operation-level diagnostics.
	Log zerolog.Logger
}

// NewKeyring returns a Keyring client using the given runner.
func NewKeyring(runner Runner, log zerolog.Logger) *Keyring {
	return &Keyring{Bin: "pacman-key", Runner: runner, Log: log}
}

// Receive fetches a signing key from a key server into the local keyring.
func (k *Keyring) Receive(ctx context.Context, keyID, server string) error {
	out, err := k.Runner.Run(ctx, k.Bin, "--recv-keys", keyID, "--keyserver", server)
	if err != nil {
		return fmt.Errorf("receive key %s from %s: %w: %s", keyID, server, err, out.Combined())
	}
	return nil
}

// LocallySign marks a fetched key as locally trusted.
func (k *Keyring) LocallySign(ctx context.Context, keyID string) error {
	out, err := k.Runner.Run(ctx, k.Bin, "--lsign-key", keyID)
	if err != nil {
		return fmt.Errorf("locally sign key %s: %w: %s", keyID, err, out.Combined())
	}
	return nil
}
