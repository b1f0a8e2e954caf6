package main

import (
	"fmt"
	"os"

	"github.com/dziadu-dev/cardsync/internal/history"
	"github.com/dziadu-dev/cardsync/internal/logging"
	"github.com/dziadu-dev/cardsync/internal/progress"
	"github.com/dziadu-dev/cardsync/internal/ui"
	"github.com/dziadu-dev/cardsync/internal/updater"
	"github.com/dziadu-dev/cardsync/internal/vcs"
	"github.com/dziadu-dev/cardsync/internal/vcs/git"
)

// app bundles an orchestrator with the optional services it reports to.
type app struct {
	orch     *updater.Orchestrator
	history  *history.DB
	progress *progress.Server
	cleanup  []func()
}

// Close stops the services in reverse order of creation.
func (r *app) Close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

// newApp builds an orchestrator from cfg. The history database and
// progress server are attached when configured; failures there are
// warnings.
func newApp() (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	source, err := vcs.SanitizePath(cfg.SourcePath, cwd)
	if err != nil {
		return nil, fmt.Errorf("source_path: %w", err)
	}
	target, err := vcs.SanitizePath(cfg.TargetPath, cwd)
	if err != nil {
		return nil, fmt.Errorf("target_path: %w", err)
	}
	cfg.SourcePath, cfg.TargetPath = source, target

	rt := &app{}
	ucfg := updater.DefaultConfig()
	ucfg.SourcePath = cfg.SourcePath
	ucfg.TargetPath = cfg.TargetPath
	ucfg.BaseURL = cfg.BaseURL
	ucfg.Workers = cfg.Workers
	ucfg.CachePath = cfg.CachePath
	ucfg.BackupEnabled = cfg.Backup.Enabled
	ucfg.BackupDir = cfg.Backup.Dir
	ucfg.Git = git.New(cfg.Git.Timeout)
	ucfg.Logger = logger

	if cfg.History.Path != "" {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			warn("run history disabled: %v", err)
		} else {
			rt.history = db
			ucfg.Recorder = db
			rt.cleanup = append(rt.cleanup, func() { _ = db.Close() })
		}
	}

	if cfg.Progress.Port > 0 {
		server := progress.NewServer(progress.Config{
			Port:   cfg.Progress.Port,
			Logger: logging.New(os.Stderr, "[progress] "),
		})
		handler := progress.NewHandler(server)
		if err := server.Start(); err != nil {
			warn("progress stream disabled: %v", err)
		} else {
			rt.progress = server
			ucfg.Notifier = handler
			removeSink := logger.AddSink(handler)
			rt.cleanup = append(rt.cleanup, func() {
				removeSink()
				_ = server.Stop()
			})
		}
	}

	orch, err := updater.New(ucfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orch = orch
	return rt, nil
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("Warning:"), fmt.Sprintf(format, args...))
}
