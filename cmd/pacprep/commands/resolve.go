package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacprep/pacprep/pkg/resolve"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <package>...",
		Short: "Show which source each package resolves to",
		Long: `Query the primary and secondary sources for each package and print
the resulting buckets. A package available in both sources resolves to
the primary one.`,
		Example: `  pacprep resolve vim paru informant`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			set, err := app.resolver.Resolve(cmd.Context(), []resolve.PackageRequest{{Names: args}})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string][]string{
					"primary":     set.Primary,
					"secondary":   set.Secondary,
					"unavailable": set.Unavailable,
				})
			}

			for _, pkg := range set.Primary {
				fmt.Printf("%-24s primary\n", pkg)
			}
			for _, pkg := range set.Secondary {
				fmt.Printf("%-24s secondary\n", pkg)
			}
			for _, pkg := range set.Unavailable {
				fmt.Printf("%-24s unavailable\n", pkg)
			}
			return nil
		},
	}
}
