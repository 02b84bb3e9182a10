package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repository sections",
	}
	cmd.AddCommand(newRepoEnableCommand())
	cmd.AddCommand(newRepoListCommand())
	return cmd
}

func newRepoEnableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable one repository from the catalog",
		Long: `Enable a repository section in pacman.conf. For third-party
repositories the signing key is fetched and locally trusted first, and
the keyring packages are installed. Enabling an already enabled
repository is a no-op.`,
		Example: `  pacprep repo enable multilib
  pacprep repo enable chaotic-aur`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			cat, err := app.loadCatalog()
			if err != nil {
				return err
			}
			spec, ok := cat.Repository(args[0])
			if !ok {
				return fmt.Errorf("repository %q not in catalog", args[0])
			}
			if err := app.provisioner.Enable(cmd.Context(), spec); err != nil {
				return err
			}
			fmt.Printf("repository %s enabled\n", spec.Name)
			return nil
		},
	}
	return cmd
}

func newRepoListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the repositories the catalog can enable",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			cat, err := app.loadCatalog()
			if err != nil {
				return err
			}
			for _, repo := range cat.Repositories {
				kind := "official"
				if repo.ThirdParty() {
					kind = "third-party"
				}
				fmt.Printf("%-16s %-12s %s\n", repo.Name, kind, repo.Include)
			}
			return nil
		},
	}
}
