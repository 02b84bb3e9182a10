// Package engine runs the staged post-install pipeline:
// Init -> SafetyChecks -> Provisioning -> Resolution -> Installation ->
// Cleanup -> Done, with Aborted as the terminal stage for runs cut short.
// Stages run strictly in order; per-component failures are recorded and
// the pipeline continues, while safety failures, failed rollbacks and
// cancellation abort it.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/pacprep/pacprep/pkg/catalog"
	"github.com/pacprep/pacprep/pkg/provision"
	"github.com/pacprep/pacprep/pkg/resolve"
	"github.com/pacprep/pacprep/pkg/retry"
)

// Plan is everything one run processes.
type Plan struct {
	// RunID identifies the run in logs, the journal and the report.
	RunID string

	// Repos are enabled during the provisioning stage, in order.
	Repos []provision.Spec

	// Components are processed in order.
	Components []catalog.Component

	// Unattended suppresses all prompts. Packages whose build definition
	// requires review are skipped, never auto-approved.
	Unattended bool

	// DryRun resolves and plans without any mutating side effect.
	DryRun bool
}

// NewPlan builds a run plan from a catalog and an optional component
// selection.
func NewPlan(cat *catalog.Catalog, selectNames []string, unattended, dryRun bool) (Plan, error) {
	components, err := cat.Select(selectNames)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		RunID:      uuid.NewString(),
		Repos:      cat.Repositories,
		Components: components,
		Unattended: unattended,
		DryRun:     dryRun,
	}, nil
}

// Provisioner enables one repository.
type Provisioner interface {
	Enable(ctx context.Context, spec provision.Spec) error
}

// PackageResolver classifies package requests across sources.
type PackageResolver interface {
	Resolve(ctx context.Context, requests []resolve.PackageRequest) (*resolve.ResolvedSet, error)
}

// PrimaryInstaller drives the primary package source.
type PrimaryInstaller interface {
	Install(ctx context.Context, pkg string) error
	InstallSet(ctx context.Context, pkgs []string) error
	Remove(ctx context.Context, pkgs []string) error
	Orphans(ctx context.Context) ([]string, error)
	CleanCache(ctx context.Context) error
}

// SecondaryInstaller drives the secondary package source. May be absent.
type SecondaryInstaller interface {
	Install(ctx context.Context, pkg string, review bool) error
}

// Journal records run history for later inspection. It is write-only from
// the pipeline's point of view: outcomes during a run come from the
// StatusSet, never from the journal. Journal errors are logged and never
// affect the run.
type Journal interface {
	RecordRunStart(ctx context.Context, runID string, startedAt time.Time) error
	RecordComponent(ctx context.Context, runID, component, state, detail string) error
	RecordRunEnd(ctx context.Context, runID, finalStage string, finishedAt time.Time) error
}

// RunObserver receives pipeline outcomes, used to feed metrics.
type RunObserver interface {
	ObserveComponent(state string)
	ObserveRun(finalStage string, d time.Duration)
}

// Orchestrator executes plans. All collaborators are injected; the
// orchestrator owns only the stage sequencing and the status bookkeeping.
type Orchestrator struct {
	// Provisioner enables repositories.
	Provisioner Provisioner

	// Resolver classifies package requests.
	Resolver PackageResolver

	// Primary installs from the official source.
	Primary PrimaryInstaller

	// Secondary installs from the community source. Nil when no helper is
	// installed.
	Secondary SecondaryInstaller

	// Checks run before any mutation. A failure aborts the run.
	Checks []SafetyCheck

	// Heartbeat keeps privileges fresh for the run's lifetime. Optional.
	Heartbeat *Heartbeat

	// Retry re-runs primary install transactions that failed on what
	// looks like a network condition.
	Retry *retry.Runner

	// Journal persists run history. Optional.
	Journal Journal

	// Observer receives component and run outcomes. Optional.
	Observer RunObserver

	// Tracer emits one span per stage. Optional.
	Tracer trace.Tracer

	// Log receives run-level diagnostics.
	Log zerolog.Logger
}

// Run executes the plan and always returns a report, even for aborted
// runs. The error is non-nil only when the pipeline aborted; recorded
// component failures end in a Done run with failure counts in the report.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Report, error) {
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}
	log := o.Log.With().Str("run_id", plan.RunID).Logger()

	// Repositories are logical components too: their outcomes share the
	// StatusSet with the package and action components.
	names := make([]string, 0, len(plan.Repos)+len(plan.Components))
	for _, r := range plan.Repos {
		names = append(names, r.Name)
	}
	for _, c := range plan.Components {
		names = append(names, c.Name)
	}

	report := &Report{
		RunID:     plan.RunID,
		DryRun:    plan.DryRun,
		StartedAt: time.Now(),
		Statuses:  NewStatusSet(names...),
	}

	if o.Journal != nil {
		if err := o.Journal.RecordRunStart(ctx, plan.RunID, report.StartedAt); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}

	if o.Heartbeat != nil && !plan.DryRun {
		stop := o.Heartbeat.Start(ctx)
		defer stop()
	}

	err := o.pipeline(ctx, plan, report, log)
	o.finish(ctx, report, log)
	return report, err
}

// pipeline walks the stages. A returned error means the run aborted; the
// report's final stage is already set when it returns.
func (o *Orchestrator) pipeline(ctx context.Context, plan Plan, report *Report, log zerolog.Logger) error {
	if err := o.safetyStage(ctx, plan, log); err != nil {
		return o.abort(report, log, err)
	}

	failedRepos := o.provisionStage(ctx, plan, report, log)
	for _, rf := range report.RepoFailures {
		if abortsRun(rf.Err) {
			return o.abort(report, log, rf.Err)
		}
	}
	if ctx.Err() != nil {
		return o.abort(report, log, ctx.Err())
	}

	resolved := o.resolutionStage(ctx, plan, failedRepos, log)
	if ctx.Err() != nil {
		return o.abort(report, log, ctx.Err())
	}

	if err := o.installationStage(ctx, plan, report, failedRepos, resolved, log); err != nil {
		return o.abort(report, log, err)
	}

	o.cleanupStage(ctx, plan, report, log)
	if ctx.Err() != nil {
		return o.abort(report, log, ctx.Err())
	}

	report.FinalStage = StageDone
	return nil
}

func (o *Orchestrator) safetyStage(ctx context.Context, plan Plan, log zerolog.Logger) error {
	ctx, end := o.startStage(ctx, StageSafetyChecks)
	defer end()

	if plan.DryRun {
		log.Info().Msg("dry run, skipping safety checks")
		return nil
	}
	for _, check := range o.Checks {
		if err := check.Run(ctx); err != nil {
			return &SafetyError{Check: check.Name, Err: err}
		}
		log.Debug().Str("check", check.Name).Msg("safety check passed")
	}
	return nil
}

// provisionStage enables every repository of the plan and returns the set
// of repositories that could not be made usable. A provisioning failure is
// recorded as Failed in the StatusSet, not fatal: components that depend
// on the repository are skipped later, and the run reports the failure.
func (o *Orchestrator) provisionStage(ctx context.Context, plan Plan, report *Report, log zerolog.Logger) map[string]error {
	ctx, end := o.startStage(ctx, StageProvisioning)
	defer end()

	failed := make(map[string]error)
	for _, spec := range plan.Repos {
		if ctx.Err() != nil {
			return failed
		}
		if plan.DryRun {
			o.record(ctx, report, spec.Name, StateSkipped, "dry run, would enable repository", log)
			continue
		}
		if err := o.Provisioner.Enable(ctx, spec); err != nil {
			log.Error().Err(err).Str("repo", spec.Name).Msg("repository provisioning failed")
			failed[spec.Name] = err
			report.RepoFailures = append(report.RepoFailures, RepoFailure{Name: spec.Name, Err: err})
			o.record(ctx, report, spec.Name, StateFailed, err.Error(), log)
			continue
		}
		o.record(ctx, report, spec.Name, StateInstalled, "repository enabled", log)
	}
	return failed
}

// resolutionStage classifies the package requests of every component that
// will actually be attempted. Resolution is read-only and runs for dry
// runs too, so the report can show what would be installed.
func (o *Orchestrator) resolutionStage(ctx context.Context, plan Plan, failedRepos map[string]error, log zerolog.Logger) map[string]*resolve.ResolvedSet {
	ctx, end := o.startStage(ctx, StageResolution)
	defer end()

	resolved := make(map[string]*resolve.ResolvedSet)
	for _, comp := range plan.Components {
		if comp.IsAction() || len(comp.Packages) == 0 {
			continue
		}
		if _, repoDown := failedRepos[comp.RequiresRepo]; repoDown {
			continue
		}
		if ctx.Err() != nil {
			return resolved
		}
		set, err := o.Resolver.Resolve(ctx, comp.Packages)
		if err != nil {
			log.Error().Err(err).Str("component", comp.Name).Msg("resolution failed")
			continue
		}
		log.Info().Str("component", comp.Name).
			Int("primary", len(set.Primary)).
			Int("secondary", len(set.Secondary)).
			Int("unavailable", len(set.Unavailable)).
			Msg("component resolved")
		resolved[comp.Name] = set
	}
	return resolved
}

func (o *Orchestrator) installationStage(ctx context.Context, plan Plan, report *Report, failedRepos map[string]error, resolved map[string]*resolve.ResolvedSet, log zerolog.Logger) error {
	ctx, end := o.startStage(ctx, StageInstallation)
	defer end()

	for _, comp := range plan.Components {
		if comp.IsAction() {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if repoErr, down := failedRepos[comp.RequiresRepo]; down {
			o.record(ctx, report, comp.Name, StateSkipped,
				fmt.Sprintf("repository %s unavailable: %v", comp.RequiresRepo, repoErr), log)
			continue
		}

		set, ok := resolved[comp.Name]
		if !ok {
			o.record(ctx, report, comp.Name, StateFailed, "resolution missing", log)
			continue
		}

		if plan.DryRun {
			o.record(ctx, report, comp.Name, StateSkipped, dryRunSummary(set), log)
			continue
		}

		state, detail := o.installComponent(ctx, plan, comp.Name, set, log)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.record(ctx, report, comp.Name, state, detail, log)
	}
	return nil
}

// installComponent installs one component's resolved set and derives its
// final state. Unavailable packages are recorded, not fatal; a component
// is partial when some but not all of its packages landed.
func (o *Orchestrator) installComponent(ctx context.Context, plan Plan, name string, set *resolve.ResolvedSet, log zerolog.Logger) (ComponentState, string) {
	var installed, failed, awaitingReview []string
	var failDiags []string

	if len(set.Primary) > 0 {
		if err := o.installPrimarySet(ctx, name, set.Primary); err != nil {
			// Salvage what the batch transaction could not deliver.
			for _, pkg := range set.Primary {
				if ctx.Err() != nil {
					return StateNotAttempted, ""
				}
				if perr := o.Primary.Install(ctx, pkg); perr != nil {
					failed = append(failed, pkg)
					failDiags = append(failDiags, fmt.Sprintf("%s: %v", pkg, perr))
				} else {
					installed = append(installed, pkg)
				}
			}
		} else {
			installed = append(installed, set.Primary...)
		}
	}

	for _, pkg := range set.Secondary {
		if ctx.Err() != nil {
			return StateNotAttempted, ""
		}
		review := set.ReviewRequired(pkg)
		if review && plan.Unattended {
			awaitingReview = append(awaitingReview, pkg)
			log.Info().Str("package", pkg).Msg("build review required, skipped in unattended mode")
			continue
		}
		if o.Secondary == nil {
			failed = append(failed, pkg)
			failDiags = append(failDiags, pkg+": no secondary source tooling installed")
			continue
		}
		if err := o.Secondary.Install(ctx, pkg, review); err != nil {
			failed = append(failed, pkg)
			failDiags = append(failDiags, fmt.Sprintf("%s: %v", pkg, err))
		} else {
			installed = append(installed, pkg)
		}
	}

	return componentOutcome(installed, failed, awaitingReview, set.Unavailable, failDiags)
}

// installPrimarySet runs the batch transaction, retrying once through the
// retry runner when the failure looks like a network condition.
func (o *Orchestrator) installPrimarySet(ctx context.Context, name string, pkgs []string) error {
	err := o.Primary.InstallSet(ctx, pkgs)
	if err == nil || o.Retry == nil || !transientInstall(err) {
		return err
	}
	return o.Retry.Do(ctx, "install-"+name, func(ctx context.Context) error {
		return o.Primary.InstallSet(ctx, pkgs)
	})
}

func componentOutcome(installed, failed, awaitingReview, unavailable, failDiags []string) (ComponentState, string) {
	var notes []string
	if len(installed) > 0 {
		notes = append(notes, fmt.Sprintf("%d installed", len(installed)))
	}
	if len(failed) > 0 {
		notes = append(notes, fmt.Sprintf("%d failed (%s)", len(failed), strings.Join(failDiags, "; ")))
	}
	if len(awaitingReview) > 0 {
		notes = append(notes, fmt.Sprintf("%d awaiting review (%s)", len(awaitingReview), strings.Join(awaitingReview, ", ")))
	}
	if len(unavailable) > 0 {
		notes = append(notes, fmt.Sprintf("%d unavailable (%s)", len(unavailable), strings.Join(unavailable, ", ")))
	}
	detail := strings.Join(notes, ", ")

	switch {
	case len(failed) == 0 && len(unavailable) == 0 && len(awaitingReview) == 0:
		return StateInstalled, detail
	case len(installed) == 0 && len(failed) == 0 && len(unavailable) == 0:
		return StateSkipped, detail
	case len(installed) == 0:
		return StateFailed, detail
	default:
		return StatePartiallyInstalled, detail
	}
}

// cleanupStage runs the maintenance action components. Cleanup is best
// effort: failures are recorded against the component and never abort.
func (o *Orchestrator) cleanupStage(ctx context.Context, plan Plan, report *Report, log zerolog.Logger) {
	ctx, end := o.startStage(ctx, StageCleanup)
	defer end()

	for _, comp := range plan.Components {
		if !comp.IsAction() {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if plan.DryRun {
			o.record(ctx, report, comp.Name, StateSkipped, "dry run, would run "+comp.Action, log)
			continue
		}

		detail, err := o.runAction(ctx, comp.Action)
		if err != nil {
			log.Warn().Err(err).Str("component", comp.Name).Msg("cleanup action failed")
			o.record(ctx, report, comp.Name, StateFailed, err.Error(), log)
			continue
		}
		o.record(ctx, report, comp.Name, StateInstalled, detail, log)
	}
}

func (o *Orchestrator) runAction(ctx context.Context, action string) (string, error) {
	switch action {
	case catalog.ActionCleanup:
		orphans, err := o.Primary.Orphans(ctx)
		if err != nil {
			return "", err
		}
		if len(orphans) == 0 {
			return "no orphans", nil
		}
		if err := o.Primary.Remove(ctx, orphans); err != nil {
			return "", err
		}
		return fmt.Sprintf("removed %d orphans", len(orphans)), nil
	case catalog.ActionCacheClear:
		if err := o.Primary.CleanCache(ctx); err != nil {
			return "", err
		}
		return "cache cleared", nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

// record sets a component outcome and fans it out to the journal, the
// observer and the log. Double writes indicate a sequencing bug and are
// surfaced in the log rather than panicking mid-run.
func (o *Orchestrator) record(ctx context.Context, report *Report, name string, state ComponentState, detail string, log zerolog.Logger) {
	if err := report.Statuses.Set(name, state, detail); err != nil {
		log.Error().Err(err).Str("component", name).Msg("status bookkeeping violation")
		return
	}
	log.Info().Str("component", name).Str("state", string(state)).Str("detail", detail).Msg("component finished")

	if o.Observer != nil {
		o.Observer.ObserveComponent(string(state))
	}
	if o.Journal != nil {
		if err := o.Journal.RecordComponent(ctx, report.RunID, name, string(state), detail); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}
}

func (o *Orchestrator) abort(report *Report, log zerolog.Logger, cause error) error {
	report.FinalStage = StageAborted
	report.Err = cause
	log.Error().Err(cause).Msg("run aborted")
	return cause
}

func (o *Orchestrator) finish(ctx context.Context, report *Report, log zerolog.Logger) {
	report.FinishedAt = time.Now()
	if o.Observer != nil {
		o.Observer.ObserveRun(string(report.FinalStage), report.FinishedAt.Sub(report.StartedAt))
	}
	if o.Journal != nil {
		// The run row must land even when ctx is cancelled.
		if err := o.Journal.RecordRunEnd(context.WithoutCancel(ctx), report.RunID, string(report.FinalStage), report.FinishedAt); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}
	log.Info().Str("final_stage", string(report.FinalStage)).Dur("duration", report.Duration()).Msg("run finished")
}

func (o *Orchestrator) startStage(ctx context.Context, stage Stage) (context.Context, func()) {
	if o.Tracer == nil {
		return ctx, func() {}
	}
	ctx, span := o.Tracer.Start(ctx, "pipeline."+string(stage))
	return ctx, func() { span.End() }
}

func dryRunSummary(set *resolve.ResolvedSet) string {
	return fmt.Sprintf("dry run: %d primary, %d secondary, %d unavailable",
		len(set.Primary), len(set.Secondary), len(set.Unavailable))
}
