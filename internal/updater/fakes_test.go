package updater

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/dziadu-dev/cardsync/internal/vcs"
)

// fakeGit records calls instead of running git.
type fakeGit struct {
	mu       sync.Mutex
	invalid  map[string]bool
	pulls    []string
	messages []string

	nothingToCommit bool
	pushErr         error
	block           chan struct{}
	panicOnValidate string
}

func newFakeGit() *fakeGit {
	return &fakeGit{invalid: make(map[string]bool)}
}

func (f *fakeGit) Validate(ctx context.Context, path string) error {
	if f.panicOnValidate != "" {
		panic(f.panicOnValidate)
	}
	if f.invalid[path] {
		return fmt.Errorf("%w: %s", vcs.ErrNotInVCS, path)
	}
	return nil
}

func (f *fakeGit) Pull(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, path)
	return nil
}

func (f *fakeGit) CommitAndPush(ctx context.Context, path, message string) (bool, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nothingToCommit {
		return false, nil
	}
	f.messages = append(f.messages, message)
	return true, f.pushErr
}

func (f *fakeGit) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeGit) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pulls)
}

// spyFs counts html files opened through it.
type spyFs struct {
	afero.Fs
	htmlOpens atomic.Int64
}

func (s *spyFs) note(name string) {
	if strings.HasSuffix(name, ".html") {
		s.htmlOpens.Add(1)
	}
}

func (s *spyFs) Open(name string) (afero.File, error) {
	s.note(name)
	return s.Fs.Open(name)
}

func (s *spyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	s.note(name)
	return s.Fs.OpenFile(name, flag, perm)
}

func (s *spyFs) Create(name string) (afero.File, error) {
	s.note(name)
	return s.Fs.Create(name)
}

// panicFs panics when a page is opened.
type panicFs struct {
	afero.Fs
	page string
}

func (p *panicFs) Open(name string) (afero.File, error) {
	if name == p.page {
		panic("disk exploded")
	}
	return p.Fs.Open(name)
}

func (p *panicFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == p.page {
		panic("disk exploded")
	}
	return p.Fs.OpenFile(name, flag, perm)
}

// failOnceFs fails the first write to page.
type failOnceFs struct {
	afero.Fs
	page   string
	failed atomic.Bool
}

func (f *failOnceFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.page && flag&(os.O_WRONLY|os.O_RDWR) != 0 && f.failed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

type recordingNotifier struct {
	mu      sync.Mutex
	states  []State
	reports []*Report
}

func (r *recordingNotifier) StateChanged(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingNotifier) RunFinished(report *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

type recordingRecorder struct {
	reports []*Report
}

func (r *recordingRecorder) RecordRun(ctx context.Context, report *Report) error {
	r.reports = append(r.reports, report)
	return nil
}
