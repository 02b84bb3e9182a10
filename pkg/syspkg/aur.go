package syspkg

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// helperCandidates are the AUR helpers probed by DetectAURHelper, in order
// of preference.
var helperCandidates = []string{"paru", "yay", "trizen"}

// AURHelper drives the secondary package source through an AUR helper.
// The helper shares pacman's flag surface for the operations used here.
type AURHelper struct {
	// Bin is the helper binary (paru, yay, ...).
	Bin string

	// Runner executes the subprocess calls.
	Runner Runner

	// Log receives operation-level diagnostics.
	Log zerolog.Logger
}

// DetectAURHelper locates an installed AUR helper. It returns an error when
// none of the known helpers is on PATH; the secondary source is then
// unavailable and every secondary-only package resolves as unavailable.
func DetectAURHelper(runner Runner, log zerolog.Logger) (*AURHelper, error) {
	for _, bin := range helperCandidates {
		if _, err := exec.LookPath(bin); err == nil {
			log.Debug().Str("helper", bin).Msg("detected AUR helper")
			return &AURHelper{Bin: bin, Runner: runner, Log: log}, nil
		}
	}
	return nil, fmt.Errorf("no AUR helper found (tried %v)", helperCandidates)
}

// Available reports whether the package exists in the secondary source.
func (a *AURHelper) Available(ctx context.Context, pkg string) (bool, error) {
	out, err := a.Runner.Run(ctx, a.Bin, "-Si", pkg)
	if err == nil {
		return true, nil
	}
	if out.ExitCode == 1 {
		return false, nil
	}
	return false, fmt.Errorf("query %s: %w: %s", pkg, err, out.Combined())
}

// Install installs one package from the secondary source. When review is
// true the helper is left interactive so a human can inspect the build
// definition before it runs; otherwise prompts are suppressed.
func (a *AURHelper) Install(ctx context.Context, pkg string, review bool) error {
	args := []string{"-S", "--needed"}
	if !review {
		args = append(args, "--noconfirm")
	}
	args = append(args, pkg)
	out, err := a.Runner.Run(ctx, a.Bin, args...)
	if err != nil {
		return &InstallError{Tool: a.Bin, Packages: []string{pkg}, Diagnostic: out.Combined(), Err: err}
	}
	return nil
}
