package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	var keepCache bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned packages and clean the package cache",
		Long: `Remove packages nothing depends on and drop superseded archives from
the download cache. Both steps are best effort: a failure is reported
but does not stop the other step.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var firstErr error

			orphans, err := app.pacman.Orphans(ctx)
			if err != nil {
				app.log.Warn().Err(err).Msg("orphan listing failed")
				firstErr = err
			} else if len(orphans) == 0 {
				fmt.Println("no orphans")
			} else if err := app.pacman.Remove(ctx, orphans); err != nil {
				app.log.Warn().Err(err).Msg("orphan removal failed")
				firstErr = err
			} else {
				fmt.Printf("removed %d orphans\n", len(orphans))
			}

			if !keepCache {
				if err := app.pacman.CleanCache(ctx); err != nil {
					app.log.Warn().Err(err).Msg("cache clean failed")
					if firstErr == nil {
						firstErr = err
					}
				} else {
					fmt.Println("cache cleaned")
				}
			}
			return firstErr
		},
	}

	cmd.Flags().BoolVar(&keepCache, "keep-cache", false, "skip the package cache cleanup")
	return cmd
}
