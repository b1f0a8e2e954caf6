package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "maintenance",
	Short:   "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and environment
overrides are applied. The output is valid cardsync.toml.`,
	Run: func(cmd *cobra.Command, args []string) {
		asYAML, _ := cmd.Flags().GetBool("yaml")

		if cfg.File != "" {
			fmt.Fprintf(os.Stderr, "%s\n", ui.RenderMuted("# from "+cfg.File))
		} else {
			fmt.Fprintf(os.Stderr, "%s\n", ui.RenderMuted("# no config file, defaults and environment only"))
		}

		var err error
		if asYAML {
			err = cfg.WriteYAML(os.Stdout)
		} else {
			err = cfg.WriteTOML(os.Stdout)
		}
		if err != nil {
			fatal("%v", err)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\n%s\n%v\n", ui.RenderWarn("Configuration is incomplete:"), err)
		}
	},
}

func init() {
	configShowCmd.Flags().Bool("yaml", false, "Print as YAML")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
