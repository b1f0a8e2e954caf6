package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/content"
	"github.com/dziadu-dev/cardsync/internal/ui"
	"github.com/dziadu-dev/cardsync/internal/updater"
	"github.com/dziadu-dev/cardsync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Update automatically when content changes",
	Long: `Watch the category folders of the content repository and run an update
whenever files change. Bursts of changes are debounced (watch.debounce).
With watch.interval or --interval set, an update also runs periodically.

An update runs once at startup. Each update waits for its push before the
next one starts. Backups older than backup.cleanup_days are removed after
every update.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("interval") {
			cfg.Watch.Interval, _ = cmd.Flags().GetDuration("interval")
		}

		rt, err := newApp()
		if err != nil {
			fatal("%v", err)
		}
		defer rt.Close()

		roots := make([]string, 0, len(content.Categories))
		for _, category := range content.Categories {
			roots = append(roots, filepath.Join(cfg.SourcePath, category))
		}

		w, err := watch.New(rt.orch, watch.Config{
			Roots:    roots,
			Debounce: cfg.Watch.Debounce,
			Interval: cfg.Watch.Interval,
			Logger:   logger,
			OnReport: func(report *updater.Report) {
				printReport(report)
				if cfg.Backup.CleanupDays > 0 {
					if n, err := rt.orch.Backups().CleanupDays(cfg.Backup.CleanupDays); err != nil {
						warn("backup cleanup failed: %v", err)
					} else if n > 0 {
						fmt.Printf("   Removed %d old backups\n", n)
					}
				}
			},
		})
		if err != nil {
			fatal("%v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Watching %s (Ctrl+C to stop)\n", ui.RenderAccent("👀"), cfg.SourcePath)
		if rt.progress != nil {
			fmt.Printf("   Progress stream: ws://%s/ws\n", rt.progress.Addr())
		}

		w.Trigger()
		if err := w.Start(ctx); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("\n%s Stopped after %d updates\n", ui.RenderPass("✓"), w.Runs())
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Also update on this fixed interval (e.g. 1h)")

	rootCmd.AddCommand(watchCmd)
}
