package engine

import (
	"fmt"
	"strings"
	"time"
)

// RepoFailure records a repository that could not be provisioned.
type RepoFailure struct {
	// Name is the repository name.
	Name string `json:"name"`

	// Err is the provisioning failure.
	Err error `json:"-"`
}

// Report is the outcome of one run.
type Report struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// DryRun marks runs that performed no mutating side effects.
	DryRun bool `json:"dry_run,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// FinalStage is Done or Aborted.
	FinalStage Stage `json:"final_stage"`

	// Statuses holds the per-component outcomes.
	Statuses *StatusSet `json:"-"`

	// RepoFailures lists repositories that could not be provisioned.
	RepoFailures []RepoFailure `json:"repo_failures,omitempty"`

	// Err is the abort cause for aborted runs.
	Err error `json:"-"`
}

// Duration is the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished with every repository
// provisioned and every attempted component installed.
func (r *Report) Succeeded() bool {
	if r.FinalStage != StageDone || len(r.RepoFailures) > 0 {
		return false
	}
	counts := r.Statuses.Counts()
	return counts[StateFailed] == 0 && counts[StatePartiallyInstalled] == 0
}

// ComponentOutcome is one row of the rendered report.
type ComponentOutcome struct {
	// Name is the component name.
	Name string `json:"name"`

	// State is the recorded outcome.
	State ComponentState `json:"state"`

	// Detail is the human-readable reason recorded with the outcome.
	Detail string `json:"detail,omitempty"`
}

// Outcomes lists every component with its outcome, in plan order.
func (r *Report) Outcomes() []ComponentOutcome {
	var out []ComponentOutcome
	for _, name := range r.Statuses.Names() {
		out = append(out, ComponentOutcome{
			Name:   name,
			State:  r.Statuses.State(name),
			Detail: r.Statuses.Reason(name),
		})
	}
	return out
}

// Summary renders the report for terminal output.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s in %s\n", r.RunID, r.FinalStage, r.Duration().Round(time.Millisecond))
	if r.Err != nil {
		fmt.Fprintf(&b, "  abort cause: %v\n", r.Err)
	}
	for _, rf := range r.RepoFailures {
		fmt.Fprintf(&b, "  repository %s: %v\n", rf.Name, rf.Err)
	}
	for _, oc := range r.Outcomes() {
		if oc.Detail != "" {
			fmt.Fprintf(&b, "  %-24s %-20s %s\n", oc.Name, oc.State, oc.Detail)
		} else {
			fmt.Fprintf(&b, "  %-24s %s\n", oc.Name, oc.State)
		}
	}
	counts := r.Statuses.Counts()
	fmt.Fprintf(&b, "  %d installed, %d partial, %d skipped, %d failed, %d not attempted\n",
		counts[StateInstalled], counts[StatePartiallyInstalled], counts[StateSkipped],
		counts[StateFailed], counts[StateNotAttempted])
	return b.String()
}
