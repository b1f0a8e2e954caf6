package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/ui"
	"github.com/dziadu-dev/cardsync/internal/updater"
)

var backupsCmd = &cobra.Command{
	Use:     "backups",
	GroupID: "maintenance",
	Short:   "Manage page backups",
	Long: `Page backups are copies of each page taken before it is rewritten. They
live in backup.dir as <page>_backup_<timestamp>.html.`,
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List page backups",
	Run: func(cmd *cobra.Command, args []string) {
		backups := updater.NewBackups(afero.NewOsFs(), cfg.Backup.Dir)
		files, err := backups.List()
		if err != nil {
			fatal("%v", err)
		}
		if len(files) == 0 {
			fmt.Printf("No backups in %s\n", backups.Dir())
			return
		}
		for _, f := range files {
			fmt.Println(filepath.Base(f))
		}
		fmt.Printf("\n%d backups in %s\n", len(files), backups.Dir())
	},
}

var backupsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old page backups",
	Run: func(cmd *cobra.Command, args []string) {
		days := cfg.Backup.CleanupDays
		if cmd.Flags().Changed("days") {
			days, _ = cmd.Flags().GetInt("days")
		}
		if days < 0 {
			fatal("--days must not be negative")
		}

		backups := updater.NewBackups(afero.NewOsFs(), cfg.Backup.Dir)
		n, err := backups.CleanupDays(days)
		if err != nil {
			fatal("%v", err)
		}
		logger.Printf("Removed %d backups older than %d days", n, days)
		fmt.Printf("%s Removed %d backups older than %d days\n", ui.RenderPass("✓"), n, days)
	},
}

func init() {
	backupsCleanCmd.Flags().Int("days", 0, "Remove backups older than this many days (default: backup.cleanup_days)")

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsCleanCmd)
	rootCmd.AddCommand(backupsCmd)
}
