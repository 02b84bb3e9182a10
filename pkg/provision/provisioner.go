package provision

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pacprep/pacprep/pkg/confedit"
	"github.com/pacprep/pacprep/pkg/pacconf"
	"github.com/pacprep/pacprep/pkg/retry"
)

// Mutator applies structural edits to the configuration file.
type Mutator interface {
	ApplyEdit(ctx context.Context, path string, edit confedit.Edit) error
}

// Keyring provisions signing-key trust.
type Keyring interface {
	Receive(ctx context.Context, keyID, server string) error
	LocallySign(ctx context.Context, keyID string) error
}

// Installer installs the keyring/mirror metadata packages.
type Installer interface {
	InstallSet(ctx context.Context, pkgs []string) error
}

// Refresher synchronizes the repository indexes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Provisioner enables repository sections idempotently.
type Provisioner struct {
	// ConfigPath is the shared configuration file.
	ConfigPath string

	// Mutator is the only mutation path for ConfigPath.
	Mutator Mutator

	// Keyring provisions third-party signing keys.
	Keyring Keyring

	// Installer installs keyring packages via the primary source.
	Installer Installer

	// Refresher refreshes indexes after a section is enabled.
	Refresher Refresher

	// Retry wraps the network-dependent trust steps.
	Retry *retry.Runner

	// Log receives per-repository diagnostics.
	Log zerolog.Logger

	validate *validator.Validate
}

// NewProvisioner wires a provisioner for the given configuration file.
func NewProvisioner(configPath string, mut Mutator, keyring Keyring, installer Installer, refresher Refresher, retryRunner *retry.Runner, log zerolog.Logger) *Provisioner {
	return &Provisioner{
		ConfigPath: configPath,
		Mutator:    mut,
		Keyring:    keyring,
		Installer:  installer,
		Refresher:  refresher,
		Retry:      retryRunner,
		Log:        log,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Enable makes the repository section active:
//
//  1. short-circuit when the section already carries the expected
//     mirror-list reference (idempotence: the second call performs zero
//     mutating side effects),
//  2. for third-party repositories, fetch and locally trust the signing
//     key and install the keyring packages, each with retries,
//  3. append or uncomment the section through the config mutator,
//  4. refresh the repository indexes.
//
// Trust exhaustion yields KindTrustFailure; a failed refresh yields
// KindSyncFailure, which is fatal for this call but never rolls back the
// configuration edit: the section stays enabled and the caller decides
// whether the pipeline continues.
func (p *Provisioner) Enable(ctx context.Context, spec Spec) error {
	if p.validate == nil {
		p.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := p.validate.Struct(spec); err != nil {
		return fmt.Errorf("invalid repository spec %s: %w", spec.Name, err)
	}

	log := p.Log.With().Str("repo", spec.Name).Logger()

	enabled, err := p.alreadyEnabled(spec)
	if err != nil {
		return err
	}
	if enabled {
		log.Info().Msg("repository already enabled, skipping")
		return nil
	}

	if spec.ThirdParty() {
		if err := p.provisionTrust(ctx, spec); err != nil {
			return &Error{Kind: KindTrustFailure, Repo: spec.Name, Err: err}
		}
	}

	if err := p.checkMirrorList(spec); err != nil {
		return err
	}

	if err := p.Mutator.ApplyEdit(ctx, p.ConfigPath, p.sectionEdit(spec)); err != nil {
		return fmt.Errorf("enable section [%s]: %w", spec.Name, err)
	}
	log.Info().Str("include", spec.Include).Msg("repository section enabled")

	if err := p.Refresher.Refresh(ctx); err != nil {
		return &Error{Kind: KindSyncFailure, Repo: spec.Name, Err: err}
	}
	return nil
}

// alreadyEnabled reports whether the section exists with the expected
// mirror-list reference.
func (p *Provisioner) alreadyEnabled(spec Spec) (bool, error) {
	data, err := os.ReadFile(p.ConfigPath)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", p.ConfigPath, err)
	}
	doc, err := pacconf.Parse(data)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", p.ConfigPath, err)
	}
	if !doc.HasSection(spec.Name) {
		return false, nil
	}
	dir, ok := doc.Directive(spec.Name, "Include")
	return ok && dir.Value == spec.Include, nil
}

// provisionTrust fetches and locally signs the repository key and installs
// its keyring packages, each step through the retry runner.
func (p *Provisioner) provisionTrust(ctx context.Context, spec Spec) error {
	err := p.Retry.Do(ctx, "fetch-key-"+spec.KeyID, func(ctx context.Context) error {
		if err := p.Keyring.Receive(ctx, spec.KeyID, spec.KeyServer); err != nil {
			return err
		}
		return p.Keyring.LocallySign(ctx, spec.KeyID)
	})
	if err != nil {
		return err
	}

	if len(spec.KeyringPackages) == 0 {
		return nil
	}
	return p.Retry.Do(ctx, "install-keyring-"+spec.Name, func(ctx context.Context) error {
		return p.Installer.InstallSet(ctx, spec.KeyringPackages)
	})
}

// checkMirrorList validates the mirror-list file when it already exists.
// Keyring packages commonly deliver it, so absence before the first sync
// is only a warning for sections that reference a dedicated list.
func (p *Provisioner) checkMirrorList(spec Spec) error {
	if _, err := os.Stat(spec.Include); err != nil {
		if os.IsNotExist(err) {
			p.Log.Warn().Str("repo", spec.Name).Str("mirrorlist", spec.Include).
				Msg("mirror list not present yet")
			return nil
		}
		return fmt.Errorf("stat mirror list %s: %w", spec.Include, err)
	}
	return pacconf.ValidateMirrorList(spec.Include)
}

// sectionEdit builds the structural edit for the spec: uncomment the stock
// block when configured so, otherwise append a fresh section.
func (p *Provisioner) sectionEdit(spec Spec) func(*pacconf.Document) error {
	return func(doc *pacconf.Document) error {
		if doc.HasSection(spec.Name) {
			// Section appeared between the idempotence check and the
			// edit; ensure the Include is right and leave it alone.
			if dir, ok := doc.Directive(spec.Name, "Include"); ok && dir.Value == spec.Include {
				return nil
			}
			return doc.SetDirective(spec.Name, pacconf.KV("Include", spec.Include))
		}

		if spec.Uncomment {
			changed, err := doc.UncommentSection(spec.Name)
			if err != nil {
				return err
			}
			if changed {
				return nil
			}
			// No commented block to activate; fall through to append.
		}

		var directives []pacconf.Directive
		if spec.SigLevel != "" {
			directives = append(directives, pacconf.KV("SigLevel", spec.SigLevel))
		}
		directives = append(directives, pacconf.KV("Include", spec.Include))
		return doc.AppendSection(spec.Name, directives...)
	}
}
