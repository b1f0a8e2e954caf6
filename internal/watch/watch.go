// Package watch reruns synchronization when source content changes.
//
// The watcher:
// 1. Watches every category folder recursively for file changes
// 2. Debounces bursts of events into a single run
// 3. Optionally runs on a fixed interval
// 4. Waits for each run's commit and push before starting the next
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dziadu-dev/cardsync/internal/logging"
	"github.com/dziadu-dev/cardsync/internal/updater"
	"github.com/dziadu-dev/cardsync/internal/vcs"
)

// Runner performs one synchronization. *updater.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (*updater.Report, error)
}

// Config holds configuration for the watcher.
type Config struct {
	// Roots are the folders watched recursively. Missing roots are skipped.
	Roots []string

	// Debounce is how long the tree must stay quiet before a run starts.
	Debounce time.Duration

	// Interval triggers a run periodically. Zero disables it.
	Interval time.Duration

	// OnReport is called after each run with its report.
	OnReport func(*updater.Report)

	// Logger for watcher activity
	Logger *logging.Logger
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Watcher drives a Runner from filesystem events.
type Watcher struct {
	runner  Runner
	cfg     Config
	logger  *logging.Logger
	fsw     *fsnotify.Watcher
	trigger chan struct{}
	runs    atomic.Int64
	started atomic.Bool
}

// New creates a Watcher. Call Start to begin watching.
func New(runner Runner, cfg Config) (*Watcher, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		runner:  runner,
		cfg:     cfg,
		logger:  cfg.Logger,
		fsw:     fsw,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Runs returns how many runs have completed.
func (w *Watcher) Runs() int {
	return int(w.runs.Load())
}

// Trigger requests a run without waiting for the debounce.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start watches until ctx is cancelled. It blocks and closes the
// underlying watcher on return. A Watcher can be started once.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watcher already started")
	}
	defer w.fsw.Close()

	watched := 0
	for _, root := range w.cfg.Roots {
		n, err := w.addTree(root)
		if err != nil {
			return err
		}
		watched += n
	}
	w.logger.Printf("Watching %d folders", watched)

	debounce := time.NewTimer(w.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	var tick <-chan time.Time
	if w.cfg.Interval > 0 {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("Watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := w.addTree(event.Name); err != nil {
						w.logger.Printf("Watcher error: %v", err)
					}
				}
			}
			debounce.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("Watcher error: %v", err)

		case <-debounce.C:
			w.logger.Println("Change detected, starting update")
			w.runOnce(ctx)

		case <-tick:
			w.logger.Println("Scheduled update")
			w.runOnce(ctx)

		case <-w.trigger:
			w.runOnce(ctx)
		}
	}
}

// addTree watches root and its non-hidden subdirectories.
func (w *Watcher) addTree(root string) (int, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		w.logger.Printf("Warning: folder does not exist: %s", root)
		return 0, nil
	}

	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		n++
		return nil
	})
	return n, err
}

// relevant drops chmod-only events and hidden entries. Hidden folders are
// never watched, so only the base name needs checking.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return !isHidden(filepath.Base(event.Name))
}

// runOnce performs a run and waits for its push. Failures are logged;
// the watcher keeps going.
func (w *Watcher) runOnce(ctx context.Context) {
	report, err := w.runner.Run(ctx)
	if err != nil {
		w.logger.Printf("Update failed: %v", err)
	}
	if report != nil && report.Push != nil {
		if _, err := report.Push.Wait(ctx); err != nil {
			if vcs.IsRetryable(err) {
				w.logger.Printf("Warning: %v (retried on the next update)", err)
			} else {
				w.logger.Printf("Warning: %v", err)
			}
		}
	}
	w.runs.Add(1)
	if w.cfg.OnReport != nil && report != nil {
		w.cfg.OnReport(report)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
