package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	pacmanConf    string
	catalogPath   string
	journalPath   string
	backupDir     string
	metricsListen string
	verbose       bool
	jsonOutput    bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pacprep",
		Short: "pacprep - post-install provisioning for pacman systems",
		Long: `pacprep automates the configuration work after a fresh install:

  - safe, validated edits to pacman.conf with backup and rollback
  - repository enablement, including third-party signing-key trust
  - package resolution across the official repositories and the AUR
  - staged installation with per-component outcomes
  - orphan removal and cache cleanup`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&pacmanConf, "pacman-conf", "/etc/pacman.conf", "pacman configuration file")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (built-in catalog when empty)")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "/var/lib/pacprep/journal.db", "run journal database")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "backup directory (next to the original file when empty)")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "expose Prometheus metrics over HTTP on this address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newSetupCommand())
	rootCmd.AddCommand(newRepoCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
