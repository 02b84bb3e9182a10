package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage configuration backups",
	}
	cmd.AddCommand(newBackupCreateCommand())
	cmd.AddCommand(newBackupListCommand())
	cmd.AddCommand(newBackupRestoreCommand())
	return cmd
}

func newBackupCreateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot a configuration file",
		Example: `  pacprep backup create
  pacprep backup create --file /etc/pacman.d/mirrorlist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			target := file
			if target == "" {
				target = pacmanConf
			}
			dest, err := app.backups.Backup(target)
			if err != nil {
				return err
			}
			fmt.Printf("backed up %s to %s\n", target, dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file to snapshot (defaults to --pacman-conf)")
	return cmd
}

func newBackupListCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots of a configuration file, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			target := file
			if target == "" {
				target = pacmanConf
			}
			backups, err := app.backups.List(target)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Printf("no backups of %s\n", target)
				return nil
			}
			for _, b := range backups {
				fmt.Printf("%s  %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file whose snapshots to list (defaults to --pacman-conf)")
	return cmd
}

func newBackupRestoreCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent snapshot of a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			target := file
			if target == "" {
				target = pacmanConf
			}
			restored, err := app.backups.RestoreLatest(target)
			if err != nil {
				return err
			}
			if !restored {
				fmt.Printf("no backups of %s\n", target)
				return nil
			}
			fmt.Printf("restored %s from its latest backup\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file to restore (defaults to --pacman-conf)")
	return cmd
}
