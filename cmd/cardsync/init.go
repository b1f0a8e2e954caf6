package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/config"
	"github.com/dziadu-dev/cardsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "maintenance",
	Short:   "Create a cardsync.toml",
	Long: `Create a config file. In a terminal the settings are asked for
interactively; otherwise pass --source and --target.`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(output); err == nil && !force {
			fatal("%s already exists (use --force to overwrite)", output)
		}

		c := *cfg
		if v, _ := cmd.Flags().GetString("source"); v != "" {
			c.SourcePath = v
		}
		if v, _ := cmd.Flags().GetString("target"); v != "" {
			c.TargetPath = v
		}

		if ui.IsInteractive() {
			if err := runInitForm(&c); err != nil {
				fatal("%v", err)
			}
		}

		for _, p := range []*string{&c.SourcePath, &c.TargetPath} {
			if abs, err := filepath.Abs(*p); err == nil && *p != "" {
				*p = abs
			}
		}
		if err := c.Validate(); err != nil {
			fatal("invalid configuration:\n%v", err)
		}
		if err := c.Save(output); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), output)
	},
}

// runInitForm asks for the main settings, prefilled from c.
func runInitForm(c *config.Config) error {
	workers := strconv.Itoa(c.Workers)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Content repository").
				Description("Folder holding one subfolder per category").
				Value(&c.SourcePath).
				Validate(requireDir),
			huh.NewInput().
				Title("Site repository").
				Description("Folder holding the <category>.html pages").
				Value(&c.TargetPath).
				Validate(requireDir),
			huh.NewInput().
				Title("Site URL").
				Value(&c.BaseURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Parallel pages").
				Value(&workers).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return errors.New("enter a positive number")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Back up pages before rewriting them?").
				Value(&c.Backup.Enabled),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	c.Workers, _ = strconv.Atoi(workers)
	return nil
}

func requireDir(path string) error {
	if path == "" {
		return errors.New("required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func init() {
	initCmd.Flags().StringP("output", "o", config.FileName, "Config file to write")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	initCmd.Flags().String("source", "", "Content repository path")
	initCmd.Flags().String("target", "", "Site repository path")

	rootCmd.AddCommand(initCmd)
}
