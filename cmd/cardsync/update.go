package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/ui"
	"github.com/dziadu-dev/cardsync/internal/updater"
	"github.com/dziadu-dev/cardsync/internal/vcs"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	GroupID: "sync",
	Short:   "Run one synchronization",
	Long: `Run one synchronization:
  1. Verify both repositories
  2. Pull both repositories
  3. Scan each category folder and update its page
  4. Commit and push the site repository if any page changed

By default the command waits for the push to finish. With --no-wait it
returns as soon as the pages are written.`,
	Run: func(cmd *cobra.Command, args []string) {
		noWait, _ := cmd.Flags().GetBool("no-wait")

		rt, err := newApp()
		if err != nil {
			fatal("%v", err)
		}
		defer rt.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Updating %s from %s...\n", ui.RenderAccent("🔄"), cfg.TargetPath, cfg.SourcePath)
		report, _ := rt.orch.Run(ctx)
		printReport(report)

		if report.Push != nil && !noWait {
			committed, err := report.Push.Wait(ctx)
			switch {
			case vcs.IsUserActionRequired(err):
				fmt.Printf("%s Push failed: %v\n", ui.RenderWarn("⚠"), err)
				fmt.Printf("   Resolve it in %s by hand, then run update again\n", cfg.TargetPath)
			case err != nil:
				fmt.Printf("%s Push failed: %v\n", ui.RenderWarn("⚠"), err)
			case committed:
				fmt.Printf("%s Committed and pushed\n", ui.RenderPass("✓"))
			default:
				fmt.Printf("   Nothing to commit\n")
			}
		}

		if report.Status == updater.StatusFailed {
			if vcs.IsFatal(report.Err) {
				fmt.Printf("   Check source_path and target_path (cardsync config show)\n")
			}
			rt.Close()
			os.Exit(1)
		}
	},
}

// printReport writes a short human summary of a run to stdout.
func printReport(report *updater.Report) {
	switch report.Status {
	case updater.StatusFailed:
		fmt.Printf("%s Update failed: %s\n", ui.RenderFail("✗"), report.ErrorMessage())
	case updater.StatusUpToDate:
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), updater.UpToDateMessage)
	default:
		fmt.Printf("%s Update complete in %v\n", ui.RenderPass("✓"), report.Duration.Round(time.Millisecond))
	}

	for _, c := range report.Categories {
		switch {
		case c.Err != nil:
			fmt.Printf("   %s %s\n", ui.RenderWarn(c.Category+":"), c.Err)
		case c.Skipped != "":
			fmt.Printf("   %s %s\n", c.Category+":", ui.RenderMuted("skipped ("+c.Skipped+")"))
		case c.Result != nil:
			fmt.Printf("   %s %s\n", c.Category+":", c.Result)
		}
	}
	if report.CacheHits > 0 {
		fmt.Printf("   Cache hits: %d\n", report.CacheHits)
	}
}

func init() {
	updateCmd.Flags().Bool("no-wait", false, "Return without waiting for the push")

	rootCmd.AddCommand(updateCmd)
}
