package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs from the journal",
		Example: `  pacprep history
  pacprep history --run 6b9f0c1e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			journal, err := app.openJournal(ctx)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer journal.Close()

			if runID != "" {
				comps, err := journal.ListComponents(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(comps)
				}
				for _, c := range comps {
					fmt.Printf("%-24s %-20s %s\n", c.Name, c.State, c.Detail)
				}
				return nil
			}

			runs, err := journal.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			for _, r := range runs {
				end := "in flight"
				if r.FinishedAt != nil {
					end = r.FinishedAt.Format("2006-01-02 15:04:05")
				}
				stage := r.FinalStage
				if stage == "" {
					stage = "-"
				}
				fmt.Printf("%s  %s  %-10s %s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), stage, end)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the component outcomes of one run")
	return cmd
}
