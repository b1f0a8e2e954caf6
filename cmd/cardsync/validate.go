package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/cards"
	"github.com/dziadu-dev/cardsync/internal/content"
	"github.com/dziadu-dev/cardsync/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:     "validate [page.html...]",
	GroupID: "maintenance",
	Short:   "Check card pages for structural problems",
	Long: `Check card pages for missing containers, columns outside rows, malformed
card URLs, unbalanced tags and duplicate cards.

Without arguments every category page of the site repository is checked.`,
	Run: func(cmd *cobra.Command, args []string) {
		pages := args
		if len(pages) == 0 {
			if cfg.TargetPath == "" {
				fatal("target_path is not set")
			}
			for _, category := range content.Categories {
				pages = append(pages, filepath.Join(cfg.TargetPath, category+".html"))
			}
		}

		failed := false
		for _, page := range pages {
			data, err := os.ReadFile(page)
			if os.IsNotExist(err) && len(args) == 0 {
				fmt.Printf("%s %s: %s\n", ui.RenderMuted("-"), filepath.Base(page), ui.RenderMuted("not found"))
				continue
			}
			if err != nil {
				fmt.Printf("%s %v\n", ui.RenderFail("✗"), err)
				failed = true
				continue
			}

			issues, err := cards.ValidateHTML(data, cfg.BaseURL)
			if err != nil {
				fmt.Printf("%s %s: %v\n", ui.RenderFail("✗"), filepath.Base(page), err)
				failed = true
				continue
			}
			if len(issues) == 0 {
				fmt.Printf("%s %s\n", ui.RenderPass("✓"), filepath.Base(page))
				continue
			}
			failed = true
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), filepath.Base(page))
			for _, issue := range issues {
				fmt.Printf("   - %s\n", issue)
			}
		}

		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
