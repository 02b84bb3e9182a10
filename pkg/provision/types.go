// Package provision enables repository sections in the shared
// configuration file and, for third-party repositories, provisions the
// signing-key trust material first. All network-dependent steps run
// through the retry runner.
package provision

import (
	"errors"
	"fmt"
)

// Spec identifies a repository to enable. Static catalog data, validated
// before use, never mutated at runtime.
type Spec struct {
	// Name is the repository section name.
	Name string `yaml:"name" validate:"required"`

	// Include is the mirror-list reference written into the section.
	Include string `yaml:"include" validate:"required"`

	// SigLevel optionally overrides the signature policy for the section.
	SigLevel string `yaml:"sig_level,omitempty"`

	// Uncomment marks sections that ship commented-out in the stock
	// configuration (multilib); enabling them uncomments the existing
	// block instead of appending a new one.
	Uncomment bool `yaml:"uncomment,omitempty"`

	// KeyID is the signing key of a third-party repository.
	KeyID string `yaml:"key_id,omitempty" validate:"omitempty,hexadecimal"`

	// KeyServer is where the signing key is fetched from.
	KeyServer string `yaml:"key_server,omitempty" validate:"required_with=KeyID"`

	// KeyringPackages are the signing/mirror metadata packages installed
	// after the key is trusted (keyring and mirror-list packages).
	KeyringPackages []string `yaml:"keyring_packages,omitempty"`
}

// ThirdParty reports whether the repository needs trust provisioning.
func (s Spec) ThirdParty() bool { return s.KeyID != "" }

// ErrorKind classifies provisioning failures.
type ErrorKind string

const (
	// KindTrustFailure means signing-key trust could not be provisioned
	// after all retries.
	KindTrustFailure ErrorKind = "trust_failure"

	// KindSyncFailure means the repository-index refresh failed after the
	// section was enabled. Fatal for the provisioning call, not for the
	// whole pipeline.
	KindSyncFailure ErrorKind = "sync_failure"
)

// Error is a classified provisioning failure for one repository.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Repo is the repository being provisioned.
	Repo string

	// Err is the underlying error with the tool's diagnostics.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("provision %s: %s: %v", e.Repo, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsSyncFailure reports whether err is a provisioning sync failure.
func IsSyncFailure(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindSyncFailure
}

// IsTrustFailure reports whether err is a provisioning trust failure.
func IsTrustFailure(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindTrustFailure
}
