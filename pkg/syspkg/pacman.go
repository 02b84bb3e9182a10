package syspkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Pacman drives the primary package source tool.
type Pacman struct {
	// Bin is the pacman binary, "pacman" by default.
	Bin string

	// Runner executes the subprocess calls.
	Runner Runner

	// Log receives operation-level diagnostics.
	Log zerolog.Logger
}

// NewPacman returns a Pacman client using the given runner.
func NewPacman(runner Runner, log zerolog.Logger) *Pacman {
	return &Pacman{Bin: "pacman", Runner: runner, Log: log}
}

// Available reports whether the package exists in the enabled sync
// databases. Query errors other than "not found" are returned so the
// caller can distinguish an unreachable database from a missing package.
func (p *Pacman) Available(ctx context.Context, pkg string) (bool, error) {
	out, err := p.Runner.Run(ctx, p.Bin, "-Si", pkg)
	if err == nil {
		return true, nil
	}
	// pacman -Si exits 1 with an "error: package ... was not found" line
	// when the package simply does not exist.
	if out.ExitCode == 1 && strings.Contains(out.Stderr, "was not found") {
		return false, nil
	}
	if out.ExitCode == 1 && strings.TrimSpace(out.Stderr) == "" {
		return false, nil
	}
	return false, fmt.Errorf("query %s: %w: %s", pkg, err, out.Combined())
}

// IsInstalled reports whether the package is installed locally.
func (p *Pacman) IsInstalled(ctx context.Context, pkg string) bool {
	_, err := p.Runner.Run(ctx, p.Bin, "-Qi", pkg)
	return err == nil
}

// Install installs one package from the sync databases without prompting.
func (p *Pacman) Install(ctx context.Context, pkg string) error {
	out, err := p.Runner.Run(ctx, p.Bin, "-S", "--needed", "--noconfirm", pkg)
	if err != nil {
		return &InstallError{Tool: p.Bin, Packages: []string{pkg}, Diagnostic: out.Combined(), Err: err}
	}
	return nil
}

// InstallSet installs several packages in one transaction. Used for keyring
// and mirror metadata packages that must land together.
func (p *Pacman) InstallSet(ctx context.Context, pkgs []string) error {
	args := append([]string{"-S", "--needed", "--noconfirm"}, pkgs...)
	out, err := p.Runner.Run(ctx, p.Bin, args...)
	if err != nil {
		return &InstallError{Tool: p.Bin, Packages: pkgs, Diagnostic: out.Combined(), Err: err}
	}
	return nil
}

// Remove removes packages together with unneeded dependencies.
func (p *Pacman) Remove(ctx context.Context, pkgs []string) error {
	args := append([]string{"-Rns", "--noconfirm"}, pkgs...)
	out, err := p.Runner.Run(ctx, p.Bin, args...)
	if err != nil {
		return &InstallError{Tool: p.Bin, Packages: pkgs, Diagnostic: out.Combined(), Err: err}
	}
	return nil
}

// Orphans lists installed packages no longer required by anything
// explicitly installed. An empty list is not an error: the tool exits
// non-zero when there are no orphans.
func (p *Pacman) Orphans(ctx context.Context) ([]string, error) {
	out, err := p.Runner.Run(ctx, p.Bin, "-Qtdq")
	if err != nil {
		if strings.TrimSpace(out.Combined()) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("list orphans: %w: %s", err, out.Combined())
	}
	var orphans []string
	for _, name := range strings.Split(strings.TrimSpace(out.Stdout), "\n") {
		if name = strings.TrimSpace(name); name != "" {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}

// CleanCache removes cached package archives that are no longer installed.
func (p *Pacman) CleanCache(ctx context.Context) error {
	out, err := p.Runner.Run(ctx, p.Bin, "-Sc", "--noconfirm")
	if err != nil {
		return fmt.Errorf("clean cache: %w: %s", err, out.Combined())
	}
	return nil
}

// Refresh synchronizes the repository indexes.
func (p *Pacman) Refresh(ctx context.Context) error {
	out, err := p.Runner.Run(ctx, p.Bin, "-Sy")
	if err != nil {
		return fmt.Errorf("refresh indexes: %w: %s", err, out.Combined())
	}
	return nil
}

// CheckDatabase verifies the local database has no broken dependency
// state. Any reported problem is returned with the tool's diagnostics.
func (p *Pacman) CheckDatabase(ctx context.Context) error {
	out, err := p.Runner.Run(ctx, p.Bin, "-Dk")
	if err != nil {
		return fmt.Errorf("database check: %w: %s", err, out.Combined())
	}
	return nil
}
