package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/history"
	"github.com/dziadu-dev/cardsync/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "maintenance",
	Short:   "Show recent runs",
	Long: `Show recorded runs from the history database (history.path), newest first.

--since accepts a date (2026-03-01) or natural language such as
"yesterday", "last friday" or "3 days ago".`,
	Run: func(cmd *cobra.Command, args []string) {
		sinceText, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		keep, _ := cmd.Flags().GetInt("prune")

		if cfg.History.Path == "" {
			fatal("run history is disabled (history.path is empty)")
		}

		q := history.Query{Limit: limit, Status: status}
		if sinceText != "" {
			since, err := parseSince(sinceText, time.Now())
			if err != nil {
				fatal("%v", err)
			}
			q.Since = since
		}

		db, err := history.Open(cfg.History.Path)
		if err != nil {
			fatal("%v", err)
		}
		defer db.Close()

		ctx := context.Background()
		if keep > 0 {
			n, err := db.Prune(ctx, keep)
			if err != nil {
				fatal("%v", err)
			}
			fmt.Printf("%s Pruned %d runs\n", ui.RenderPass("✓"), n)
			return
		}

		runs, err := db.Recent(ctx, q)
		if err != nil {
			fatal("%v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return
		}

		rows := [][]string{{"STARTED", "STATUS", "DURATION", "ADDED", "REMOVED", "PAGES", "FOLDERS"}}
		for _, r := range runs {
			rows = append(rows, []string{
				r.Started.Local().Format("2006-01-02 15:04"),
				renderStatus(r.Status),
				r.Duration.Round(100 * time.Millisecond).String(),
				strconv.Itoa(r.Added),
				strconv.Itoa(r.Removed),
				strconv.Itoa(r.Modified),
				strings.Join(r.Folders, ", "),
			})
		}
		fmt.Print(ui.Table(rows))

		for _, r := range runs {
			if r.Error != "" {
				fmt.Printf("%s %s: %s\n", ui.RenderFail("✗"), r.Started.Local().Format("2006-01-02 15:04"), r.Error)
			}
		}
	},
}

// parseSince reads an ISO date or a natural-language time relative to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", text, time.Local); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: no date found", text)
	}
	return r.Time, nil
}

func renderStatus(status string) string {
	switch status {
	case "success":
		return ui.RenderPass(status)
	case "failed":
		return ui.RenderFail(status)
	default:
		return ui.RenderMuted(status)
	}
}

func init() {
	historyCmd.Flags().String("since", "", "Only runs since this time (date or e.g. \"3 days ago\")")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs")
	historyCmd.Flags().String("status", "", "Only runs with this status (success, up_to_date, failed)")
	historyCmd.Flags().Int("prune", 0, "Delete all but the newest N runs instead of listing")

	rootCmd.AddCommand(historyCmd)
}
