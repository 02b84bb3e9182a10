package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacprep/pacprep/pkg/engine"
	"github.com/pacprep/pacprep/pkg/telemetry"
)

func newSetupCommand() *cobra.Command {
	var (
		unattended  bool
		dryRun      bool
		selectNames []string
		traceRun    bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the full post-install pipeline",
		Long: `Run the staged pipeline from the catalog: safety checks, repository
provisioning, package resolution, installation and cleanup.

Components whose repository could not be provisioned are skipped, not
failed. In unattended mode, packages whose build definition requires
human review are skipped as well.`,
		Example: `  # Full run from the built-in catalog
  pacprep setup

  # Unattended run of selected components
  pacprep setup --unattended --select base-tools --select cache-clear

  # See what would happen without touching the system
  pacprep setup --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			cat, err := app.loadCatalog()
			if err != nil {
				return err
			}
			plan, err := engine.NewPlan(cat, selectNames, unattended, dryRun)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			journal, err := app.openJournal(ctx)
			if err != nil {
				app.log.Warn().Err(err).Msg("run journal unavailable, continuing without history")
				journal = nil
			} else {
				defer journal.Close()
			}

			orch := app.newOrchestrator(journal)

			if traceRun {
				cfg := telemetry.TracingConfig{Enabled: true, Exporter: "stdout"}
				tracer, terr := telemetry.NewTracer(cfg, "pacprep", cmd.Root().Version)
				if terr != nil {
					return terr
				}
				defer tracer.Shutdown(cmd.Context())
				orch.Tracer = tracer.Tracer()

				// Stage spans nest under one root span per run.
				runCtx, runSpan := tracer.StartRunSpan(ctx, plan.RunID)
				defer runSpan.End()
				ctx = runCtx
			}

			report, runErr := orch.Run(ctx, plan)
			if err := printReport(report); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("run aborted: %w", runErr)
			}
			if !report.Succeeded() {
				return fmt.Errorf("run finished with failures")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unattended, "unattended", false, "never prompt; skip packages that need build review")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and plan without mutating the system")
	cmd.Flags().StringSliceVar(&selectNames, "select", nil, "run only the named components")
	cmd.Flags().BoolVar(&traceRun, "trace", false, "emit per-stage trace spans to stdout")

	return cmd
}

func printReport(report *engine.Report) error {
	if jsonOutput {
		payload := struct {
			*engine.Report
			Outcomes []engine.ComponentOutcome `json:"components"`
		}{Report: report, Outcomes: report.Outcomes()}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	fmt.Print(report.Summary())
	return nil
}
