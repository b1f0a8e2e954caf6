// Command cardsync keeps the card pages of a static site in step with a
// content repository.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dziadu-dev/cardsync/internal/config"
	"github.com/dziadu-dev/cardsync/internal/logging"
	"github.com/dziadu-dev/cardsync/internal/ui"
)

var (
	cfgFile string
	verbose bool

	// Set by PersistentPreRunE.
	cfg     *config.Config
	logger  *logging.Logger
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "cardsync",
	Short: "Synchronize site card pages with a content repository",
	Long: `cardsync scans the category folders of a content repository, updates the
matching <category>.html pages of a site repository so they list one card per
task, then commits and pushes the site.

Configuration is read from cardsync.toml (working directory or the user config
directory), overridden by CARDSYNC_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, logFile = newLogger(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance:"},
	)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: search for cardsync.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "echo log lines to stderr")
}

// newLogger logs to the rotating file from cfg and, when verbose, stderr.
func newLogger(cfg *config.Config) (*logging.Logger, io.Closer) {
	var (
		writers []io.Writer
		closer  io.Closer
	)
	if verbose {
		writers = append(writers, os.Stderr)
	}
	if cfg.Log.File != "" {
		f := logging.NewFileWriter(logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		writers = append(writers, f)
		closer = f
	}
	if len(writers) == 0 {
		return logging.New(nil, "[cardsync] "), nil
	}
	return logging.New(io.MultiWriter(writers...), "[cardsync] "), closer
}

// fatal prints an error and exits.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
