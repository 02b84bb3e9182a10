package engine

import (
	"encoding/json"
	"fmt"
)

// ComponentState is the final outcome of one logical component in a run.
type ComponentState string

const (
	// StateNotAttempted is the initial state of every component.
	StateNotAttempted ComponentState = "not_attempted"

	// StateInstalled means every package (or the action) completed.
	StateInstalled ComponentState = "installed"

	// StateSkipped means the component was deliberately not processed:
	// its repository failed to provision, review was required in
	// unattended mode, or the run was a dry run.
	StateSkipped ComponentState = "skipped"

	// StateFailed means nothing of the component landed.
	StateFailed ComponentState = "failed"

	// StatePartiallyInstalled means some packages landed and some did not.
	StatePartiallyInstalled ComponentState = "partially_installed"
)

// IsTerminal returns true once the component has an outcome.
func (s ComponentState) IsTerminal() bool {
	return s != StateNotAttempted && s != ""
}

// Validate checks if the component state is valid.
func (s ComponentState) Validate() error {
	switch s {
	case StateNotAttempted, StateInstalled, StateSkipped, StateFailed, StatePartiallyInstalled:
		return nil
	default:
		return fmt.Errorf("invalid component state: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s ComponentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *ComponentState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ComponentState(str)
	return s.Validate()
}

// Stage identifies one step of the linear pipeline.
type Stage string

const (
	// StageInit sets up the run: ID, journal entry, heartbeat.
	StageInit Stage = "init"

	// StageSafetyChecks verifies preconditions before anything mutates.
	StageSafetyChecks Stage = "safety_checks"

	// StageProvisioning enables the catalog repositories.
	StageProvisioning Stage = "provisioning"

	// StageResolution classifies every requested package across sources.
	StageResolution Stage = "resolution"

	// StageInstallation installs the package components.
	StageInstallation Stage = "installation"

	// StageCleanup runs the maintenance actions, best effort.
	StageCleanup Stage = "cleanup"

	// StageDone is the successful terminal stage.
	StageDone Stage = "done"

	// StageAborted is the terminal stage for a run cut short by a failed
	// safety check, a failed rollback, or cancellation.
	StageAborted Stage = "aborted"
)

// IsTerminal returns true if the stage ends the pipeline.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageAborted
}

// Validate checks if the stage is valid.
func (s Stage) Validate() error {
	switch s {
	case StageInit, StageSafetyChecks, StageProvisioning, StageResolution,
		StageInstallation, StageCleanup, StageDone, StageAborted:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// StatusSet tracks the per-component outcomes of a single run. It lives
// for the process lifetime only and is threaded through the orchestrator,
// never shared as a global. Each component's outcome is set exactly once.
type StatusSet struct {
	order   []string
	states  map[string]ComponentState
	reasons map[string]string
}

// NewStatusSet registers the components of a run, all NotAttempted.
func NewStatusSet(names ...string) *StatusSet {
	s := &StatusSet{
		states:  make(map[string]ComponentState, len(names)),
		reasons: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if _, dup := s.states[name]; dup {
			continue
		}
		s.order = append(s.order, name)
		s.states[name] = StateNotAttempted
	}
	return s
}

// Set records the outcome of a component. A component that already has an
// outcome cannot be moved to a different one; the first write wins and the
// violation is reported to the caller.
func (s *StatusSet) Set(name string, state ComponentState, reason string) error {
	if err := state.Validate(); err != nil {
		return err
	}
	current, ok := s.states[name]
	if !ok {
		return fmt.Errorf("unknown component: %s", name)
	}
	if current.IsTerminal() {
		return fmt.Errorf("component %s already %s, refusing transition to %s", name, current, state)
	}
	s.states[name] = state
	s.reasons[name] = reason
	return nil
}

// State returns the recorded state of a component.
func (s *StatusSet) State(name string) ComponentState {
	return s.states[name]
}

// Reason returns the human-readable detail recorded with the outcome.
func (s *StatusSet) Reason(name string) string {
	return s.reasons[name]
}

// Names returns the components in registration order.
func (s *StatusSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Counts tallies components by state.
func (s *StatusSet) Counts() map[ComponentState]int {
	counts := make(map[ComponentState]int)
	for _, state := range s.states {
		counts[state]++
	}
	return counts
}
