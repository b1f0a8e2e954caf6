// Package git implements vcs.Porcelain with the git binary.
//
// Every command runs synchronously under a per-call timeout. Calls that touch
// the index or the remote are serialized per repository, so a commit can
// never interleave with a pull of the same clone.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dziadu-dev/cardsync/internal/vcs"
)

// Porcelain drives git working copies.
type Porcelain struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ vcs.Porcelain = (*Porcelain)(nil)

// New creates a Porcelain whose commands each run under timeout. A
// non-positive timeout selects vcs.DefaultTimeout.
func New(timeout time.Duration) *Porcelain {
	if timeout <= 0 {
		timeout = vcs.DefaultTimeout
	}
	return &Porcelain{
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex guarding the repository at path.
func (p *Porcelain) lock(path string) *sync.Mutex {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

func (p *Porcelain) run(ctx context.Context, path string, args ...string) ([]byte, error) {
	out, err := vcs.ExecContext(ctx, p.timeout, path, "git", args...)
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Validate implements vcs.Porcelain: path must exist, contain .git and be
// accepted by git rev-parse.
func (p *Porcelain) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s does not exist", vcs.ErrNotInVCS, path)
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return fmt.Errorf("%w: %s has no .git", vcs.ErrNotInVCS, path)
	}
	if _, err := p.run(ctx, path, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("%w: %w", vcs.ErrNotInVCS, err)
	}
	return nil
}

// HasRemote returns true if any remote is configured.
func (p *Porcelain) HasRemote(ctx context.Context, path string) bool {
	lines, err := vcs.ExecLines(ctx, p.timeout, path, "git", "remote")
	return err == nil && len(lines) > 0
}

// CurrentRef returns the current branch name, or "" when HEAD is detached.
func (p *Porcelain) CurrentRef(ctx context.Context, path string) (string, error) {
	out, err := p.run(ctx, path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if vcs.GetExitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return vcs.TrimOutput(out), nil
}

// Version returns the git version string.
func (p *Porcelain) Version(ctx context.Context) (string, error) {
	out, err := vcs.ExecContext(ctx, p.timeout, "", "git", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	return strings.TrimPrefix(vcs.TrimOutput(out), "git version "), nil
}

// Pull implements vcs.Porcelain.
func (p *Porcelain) Pull(ctx context.Context, path string) error {
	l := p.lock(path)
	l.Lock()
	defer l.Unlock()

	if !p.HasRemote(ctx, path) {
		return nil // local-only clone
	}

	if _, err := p.run(ctx, path, "pull"); err != nil {
		msg := err.Error()
		switch {
		case !vcs.IsExitError(err):
			// timeout or missing binary; already classified
		case strings.Contains(msg, "CONFLICT") || strings.Contains(msg, "conflicts"):
			return fmt.Errorf("%w: %w", vcs.ErrConflicts, err)
		case strings.Contains(msg, "non-fast-forward") || strings.Contains(msg, "divergent"):
			return fmt.Errorf("%w: %w", vcs.ErrMergeRequired, err)
		}
		return err
	}
	return nil
}

// HasChanges reports whether git status shows anything to commit.
func (p *Porcelain) HasChanges(ctx context.Context, path string) (bool, error) {
	lines, err := vcs.ExecLines(ctx, p.timeout, path, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(lines) > 0, nil
}

// CommitAndPush implements vcs.Porcelain. With nothing staged it returns
// (false, nil) and issues neither commit nor push. The push is skipped for
// clones without a remote.
func (p *Porcelain) CommitAndPush(ctx context.Context, path, message string) (bool, error) {
	l := p.lock(path)
	l.Lock()
	defer l.Unlock()

	if _, err := p.run(ctx, path, "add", "-A"); err != nil {
		return false, err
	}

	dirty, err := p.HasChanges(ctx, path)
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}

	if _, err := p.run(ctx, path, "commit", "-m", message); err != nil {
		return false, err
	}

	if !p.HasRemote(ctx, path) {
		return true, nil
	}
	if _, err := p.run(ctx, path, "push"); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "rejected") || strings.Contains(msg, "non-fast-forward") {
			return true, fmt.Errorf("%w: %w", vcs.ErrPushRejected, err)
		}
		return true, err
	}
	return true, nil
}
