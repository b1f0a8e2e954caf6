// Package updater runs one synchronization of the source repository into
// the published category pages.
//
// A run moves through a fixed sequence of states:
//
//	validating -> pulling -> synchronizing -> committing | no_change -> done
//
// with a terminal failed state when either repository is unusable. Pages
// are processed on a bounded worker pool. When anything changed the commit
// and push run in the background and the caller gets a PushHandle.
package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/dziadu-dev/cardsync/internal/cards"
	"github.com/dziadu-dev/cardsync/internal/content"
	"github.com/dziadu-dev/cardsync/internal/describe"
	"github.com/dziadu-dev/cardsync/internal/logging"
	"github.com/dziadu-dev/cardsync/internal/vcs"
)

// UpToDateMessage is logged when a run found nothing to change.
const UpToDateMessage = "Site is up to date - no changes found"

// ErrReposNotAccessible fails a run whose source or target is not a usable
// git working copy.
var ErrReposNotAccessible = errors.New("repositories not accessible")

// DefaultWorkers is the size of the page worker pool.
const DefaultWorkers = 4

// Recorder stores finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, report *Report) error
}

// Notifier is told about state transitions and finished runs.
type Notifier interface {
	StateChanged(state State)
	RunFinished(report *Report)
}

// Config holds configuration for the orchestrator.
type Config struct {
	// SourcePath is the content repository, holding one folder per category.
	SourcePath string

	// TargetPath is the site repository, holding <category>.html pages.
	TargetPath string

	// BaseURL is the published site root used in card links.
	BaseURL string

	// Categories limits the synchronized folders. Empty means
	// content.Categories.
	Categories []string

	// Workers bounds how many pages are processed at once.
	Workers int

	// CachePath is the structure cache file.
	CachePath string

	// BackupEnabled copies each page to BackupDir before rewriting it.
	BackupEnabled bool
	BackupDir     string

	// Fs is used for every file access. Nil means the OS filesystem.
	Fs afero.Fs

	// Git drives both working copies.
	Git vcs.Porcelain

	// Logger for run activity
	Logger *logging.Logger

	// Optional hooks; nil means absent.
	Recorder Recorder
	Notifier Notifier
}

// DefaultConfig returns sensible defaults. Paths and Git must still be set.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       content.DefaultBaseURL,
		Categories:    content.Categories,
		Workers:       DefaultWorkers,
		CachePath:     content.DefaultCachePath,
		BackupEnabled: true,
		BackupDir:     DefaultBackupDir,
	}
}

// Orchestrator runs synchronizations. Runs must not overlap; Run is
// serialized internally.
type Orchestrator struct {
	cfg      Config
	fs       afero.Fs
	logger   *logging.Logger
	describe *describe.Deriver
	backups  *Backups
	sync     *cards.Synchronizer

	runMu sync.Mutex
}

// New creates an Orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.SourcePath == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}
	if cfg.TargetPath == "" {
		return nil, fmt.Errorf("target path cannot be empty")
	}
	if cfg.Git == nil {
		return nil, fmt.Errorf("git cannot be nil")
	}

	c := *cfg
	if len(c.Categories) == 0 {
		c.Categories = content.Categories
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BaseURL == "" {
		c.BaseURL = content.DefaultBaseURL
	}
	if c.CachePath == "" {
		c.CachePath = content.DefaultCachePath
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}

	return &Orchestrator{
		cfg:      c,
		fs:       c.Fs,
		logger:   c.Logger,
		describe: describe.New(),
		backups:  NewBackups(c.Fs, c.BackupDir),
		sync:     cards.NewSynchronizer(c.Logger),
	}, nil
}

// Backups exposes the page backup store.
func (o *Orchestrator) Backups() *Backups {
	return o.backups
}

// Run performs one synchronization. The returned error is the report's Err
// and is non-nil only for failed runs; the report is always returned.
func (o *Orchestrator) Run(ctx context.Context) (report *Report, err error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	report = &Report{Started: time.Now()}
	transcript := logging.NewTranscript()
	removeSink := o.logger.AddSink(transcript)

	defer func() {
		if r := recover(); r != nil {
			report.Status = StatusFailed
			report.Err = errors.New(fmt.Sprint(r))
			o.logger.Printf("Error: unexpected failure: %v", r)
			o.setState(StateFailed)
		}
		report.Duration = time.Since(report.Started)
		removeSink()
		report.Log = transcript.Lines()
		o.finish(ctx, report)
		err = report.Err
	}()

	o.run(ctx, report)
	return report, report.Err
}

func (o *Orchestrator) run(ctx context.Context, report *Report) {
	o.logger.Printf("Starting update")

	o.setState(StateValidating)
	for _, path := range []string{o.cfg.SourcePath, o.cfg.TargetPath} {
		if err := o.cfg.Git.Validate(ctx, path); err != nil {
			o.logger.Printf("Error: %v", err)
			o.logger.Printf("Error: %v", ErrReposNotAccessible)
			report.Status = StatusFailed
			report.Err = fmt.Errorf("%w: %w", ErrReposNotAccessible, err)
			o.setState(StateFailed)
			return
		}
		o.logger.Printf("Verified: %s", filepath.Base(path))
	}

	o.setState(StatePulling)
	o.pullAll(ctx)

	o.setState(StateSynchronizing)
	cache, err := content.LoadCache(o.fs, o.cfg.CachePath)
	if err != nil {
		o.logger.Printf("Warning: %v", err)
	}
	scanner := content.NewScanner(o.fs, o.cfg.BaseURL, o.describe, o.logger)
	summary := &Summary{}

	results, err := o.synchronizeAll(ctx, cache, scanner, summary)
	report.Categories = results
	report.CacheHits = int(scanner.CacheHits())
	report.Summary = summary.Snapshot()

	if saveErr := cache.Save(o.fs, o.cfg.CachePath); saveErr != nil {
		o.logger.Printf("Warning: %v", saveErr)
	}

	if err != nil {
		report.Status = StatusFailed
		report.Err = err
		o.setState(StateFailed)
		return
	}

	if !report.Changed() {
		o.setState(StateNoChange)
		o.logger.Println(UpToDateMessage)
		report.Status = StatusUpToDate
		o.setState(StateDone)
		return
	}

	o.setState(StateCommitting)
	report.CommitMessage = summary.CommitMessage()
	report.Push = o.startPush(ctx, report.CommitMessage)
	report.Status = StatusSuccess
	o.logger.Printf("Update complete")
	o.setState(StateDone)
}

// pullAll pulls both repositories concurrently. Failures are warnings.
func (o *Orchestrator) pullAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, path := range []string{o.cfg.SourcePath, o.cfg.TargetPath} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Printf("Warning: pull %s panicked: %v", filepath.Base(path), r)
				}
			}()
			if err := o.cfg.Git.Pull(ctx, path); err != nil {
				switch {
				case vcs.IsUserActionRequired(err):
					o.logger.Printf("Warning: pull %s needs manual attention: %v", filepath.Base(path), err)
				default:
					o.logger.Printf("Warning: pull %s: %v", filepath.Base(path), err)
				}
				return
			}
			o.logger.Printf("Pulled: %s", filepath.Base(path))
		}(path)
	}
	wg.Wait()
}

// synchronizeAll processes every category page on the worker pool. Only a
// panicking worker fails the run; per-page problems are recorded in the
// results.
func (o *Orchestrator) synchronizeAll(ctx context.Context, cache *content.Cache, scanner *content.Scanner, summary *Summary) ([]CategoryResult, error) {
	categories := append([]string(nil), o.cfg.Categories...)
	sort.Strings(categories)

	results := make([]CategoryResult, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	pages := 0
	for i, category := range categories {
		page := filepath.Join(o.cfg.TargetPath, category+".html")
		results[i] = CategoryResult{Category: category, Page: filepath.Base(page)}

		if ok, _ := afero.Exists(o.fs, page); !ok {
			o.logger.Printf("Warning: page does not exist: %s", filepath.Base(page))
			results[i].Skipped = "page not found"
			continue
		}
		pages++

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.New(fmt.Sprint(r))
					results[i].Err = err
					o.logger.Printf("Error: %s: %v", category, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			o.processCategory(cache, scanner, summary, &results[i], page)
			return nil
		})
	}

	err := g.Wait()
	if pages == 0 {
		o.logger.Printf("Warning: no category pages to process")
	}
	return results, err
}

// processCategory scans one category and reconciles its page, writing the
// page only when it changed.
func (o *Orchestrator) processCategory(cache *content.Cache, scanner *content.Scanner, summary *Summary, res *CategoryResult, page string) {
	hitsBefore := scanner.CacheHits()
	structure, err := scanner.Scan(cache, filepath.Join(o.cfg.SourcePath, res.Category), res.Category)
	if err != nil {
		o.logger.Printf("Warning: %s: %v", res.Category, err)
		res.Err = err
		return
	}
	res.CacheHit = scanner.CacheHits() > hitsBefore

	if len(structure) == 0 {
		o.logger.Printf("Warning: no tasks found in %s", res.Category)
		res.Skipped = "no tasks"
		return
	}

	data, err := afero.ReadFile(o.fs, page)
	if err != nil {
		o.logger.Printf("Error: failed to read %s: %v", res.Page, err)
		res.Err = err
		return
	}
	if !utf8.Valid(data) {
		res.Err = fmt.Errorf("%s is not valid UTF-8", res.Page)
		o.logger.Printf("Error: %v", res.Err)
		return
	}

	doc, err := cards.ParseDocument(bytes.NewReader(data))
	if err != nil {
		o.logger.Printf("Error: %s: %v", res.Page, err)
		res.Err = err
		return
	}

	result, err := o.sync.Synchronize(doc, structure)
	if err != nil {
		o.logger.Printf("Warning: %s: %v", res.Page, err)
		res.Err = err
		return
	}
	res.Result = result

	o.logger.Printf("%s %s (cards %d -> %d, sections %d -> %d)", result, res.Page,
		result.Before.Cards, result.After.Cards, result.Before.Sections, result.After.Sections)
	if result.Failed > 0 {
		o.logger.Printf("Warning: %d cards could not be added to %s", result.Failed, res.Page)
	}
	if !result.Changed() {
		return
	}

	if err := o.writePage(doc, page); err != nil {
		o.logger.Printf("Error: %v", err)
		res.Err = err
		return
	}
	summary.Record(res.Page, res.Category, result)
}

// writePage backs up the page, writes the new content and restores the
// backup if the write fails.
func (o *Orchestrator) writePage(doc *cards.HTMLDocument, page string) error {
	out, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(page), err)
	}

	var backup string
	if o.cfg.BackupEnabled {
		backup, err = o.backups.Create(page)
		if err != nil {
			o.logger.Printf("Warning: %v", err)
		}
	}

	if err := afero.WriteFile(o.fs, page, out, 0644); err != nil {
		if backup != "" {
			o.logger.Printf("Restoring backup %s", backup)
			if rerr := o.backups.Restore(backup, page); rerr != nil {
				o.logger.Printf("Error: %v", rerr)
			}
		}
		return fmt.Errorf("failed to write %s: %w", filepath.Base(page), err)
	}
	return nil
}

// startPush commits and pushes the target repository in the background.
// The push outlives ctx's cancellation.
func (o *Orchestrator) startPush(ctx context.Context, message string) *PushHandle {
	h := newPushHandle()
	pushCtx := context.WithoutCancel(ctx)

	go func() {
		var (
			committed bool
			err       error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("commit panicked: %v", r)
				o.logger.Printf("Warning: %v", err)
			}
			h.finish(committed, err)
		}()

		committed, err = o.cfg.Git.CommitAndPush(pushCtx, o.cfg.TargetPath, message)
		switch {
		case err != nil && committed:
			o.logger.Printf("Warning: push failed: %v", err)
		case err != nil:
			o.logger.Printf("Warning: commit failed: %v", err)
		case !committed:
			o.logger.Printf("Nothing to commit")
		default:
			o.logger.Printf("Commit: %s", strings.SplitN(message, "\n", 2)[0])
			o.logger.Printf("Push complete")
		}
	}()

	return h
}

func (o *Orchestrator) setState(state State) {
	if o.cfg.Notifier != nil {
		o.cfg.Notifier.StateChanged(state)
	}
}

func (o *Orchestrator) finish(ctx context.Context, report *Report) {
	if o.cfg.Recorder != nil {
		if err := o.cfg.Recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			o.logger.Printf("Warning: failed to record run: %v", err)
		}
	}
	if o.cfg.Notifier != nil {
		o.cfg.Notifier.RunFinished(report)
	}
}

// PagePath returns the page of category under the target repository.
func (o *Orchestrator) PagePath(category string) string {
	return filepath.Join(o.cfg.TargetPath, category+".html")
}
