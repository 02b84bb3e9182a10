package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacprep/pacprep/pkg/syspkg"
)

func newValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pacman configuration file",
		Long: `Run the toolchain's parser against a configuration file without
mutating anything. A rejected file prints the parser's diagnostics.`,
		Example: `  pacprep validate
  pacprep validate --file /tmp/pacman.conf.candidate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			target := file
			if target == "" {
				target = pacmanConf
			}

			if err := app.validator.Validate(cmd.Context(), target); err != nil {
				var verr *syspkg.ValidationError
				if errors.As(err, &verr) {
					fmt.Printf("%s is invalid:\n%s\n", target, verr.Diagnostic)
				}
				return err
			}
			fmt.Printf("%s is valid\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file to validate (defaults to --pacman-conf)")
	return cmd
}
