package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dziadu-dev/cardsync/internal/vcs"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// setupTestRepo creates a temporary git repository on branch main with one
// commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, dir, "config", "user.name", "Test User")
	gitCmd(t, dir, "config", "user.email", "test@example.com")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("site\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", "README.md")
	gitCmd(t, dir, "commit", "-m", "initial")
	return dir
}

// setupRemote attaches a bare origin to repo and pushes main to it.
func setupRemote(t *testing.T, repo string) string {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "origin.git")
	gitCmd(t, repo, "init", "--bare", remote)
	gitCmd(t, remote, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, repo, "remote", "add", "origin", remote)
	gitCmd(t, repo, "push", "-u", "origin", "main")
	return remote
}

func commitCount(t *testing.T, dir, ref string) string {
	t.Helper()
	return gitCmd(t, dir, "rev-list", "--count", ref)
}

func TestValidate(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(0)
	ctx := context.Background()

	if err := p.Validate(ctx, repo); err != nil {
		t.Errorf("Validate(repo) error: %v", err)
	}

	plain := t.TempDir()
	if err := p.Validate(ctx, plain); !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("Validate(plain dir) = %v, want ErrNotInVCS", err)
	}

	if err := p.Validate(ctx, filepath.Join(plain, "missing")); !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("Validate(missing) = %v, want ErrNotInVCS", err)
	}

	// A stray .git file that git rejects.
	fake := t.TempDir()
	if err := os.WriteFile(filepath.Join(fake, ".git"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(ctx, fake); !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("Validate(fake .git) = %v, want ErrNotInVCS", err)
	}
}

func TestVersionAndCurrentRef(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(time.Minute)
	ctx := context.Background()

	version, err := p.Version(ctx)
	if err != nil || version == "" {
		t.Fatalf("Version() = %q, %v", version, err)
	}

	ref, err := p.CurrentRef(ctx, repo)
	if err != nil {
		t.Fatalf("CurrentRef() error: %v", err)
	}
	if ref != "main" {
		t.Errorf("CurrentRef() = %q, want main", ref)
	}

	gitCmd(t, repo, "checkout", "--detach")
	ref, err = p.CurrentRef(ctx, repo)
	if err != nil || ref != "" {
		t.Errorf("CurrentRef() detached = %q, %v; want empty", ref, err)
	}
}

func TestCommitAndPushNothingToCommit(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(0)

	committed, err := p.CommitAndPush(context.Background(), repo, "noop")
	if err != nil {
		t.Fatalf("CommitAndPush() error: %v", err)
	}
	if committed {
		t.Error("CommitAndPush() committed a clean tree")
	}
	if got := commitCount(t, repo, "HEAD"); got != "1" {
		t.Errorf("commit count = %s, want 1", got)
	}
}

func TestCommitAndPushWithoutRemote(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(0)
	ctx := context.Background()

	if p.HasRemote(ctx, repo) {
		t.Fatal("HasRemote() = true for fresh repo")
	}
	if err := os.WriteFile(filepath.Join(repo, "TSiAI.html"), []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}

	committed, err := p.CommitAndPush(ctx, repo, "Update content")
	if err != nil {
		t.Fatalf("CommitAndPush() error: %v", err)
	}
	if !committed {
		t.Fatal("CommitAndPush() did not commit")
	}
	if msg := gitCmd(t, repo, "log", "-1", "--format=%s"); msg != "Update content" {
		t.Errorf("last commit message = %q", msg)
	}
	if dirty, err := p.HasChanges(ctx, repo); err != nil || dirty {
		t.Errorf("HasChanges() after commit = %v, %v", dirty, err)
	}
}

func TestCommitAndPushToRemote(t *testing.T) {
	repo := setupTestRepo(t)
	remote := setupRemote(t, repo)
	p := New(0)
	ctx := context.Background()

	if !p.HasRemote(ctx, repo) {
		t.Fatal("HasRemote() = false after adding origin")
	}
	if err := os.WriteFile(filepath.Join(repo, "WiAI.html"), []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}

	committed, err := p.CommitAndPush(ctx, repo, "Update WiAI")
	if err != nil || !committed {
		t.Fatalf("CommitAndPush() = %v, %v", committed, err)
	}
	if got := commitCount(t, remote, "main"); got != "2" {
		t.Errorf("remote commit count = %s, want 2", got)
	}
}

func TestPull(t *testing.T) {
	upstream := setupTestRepo(t)
	remote := setupRemote(t, upstream)

	clone := filepath.Join(t.TempDir(), "clone")
	gitCmd(t, t.TempDir(), "clone", remote, clone)
	gitCmd(t, clone, "config", "user.name", "Test User")
	gitCmd(t, clone, "config", "user.email", "test@example.com")

	if err := os.WriteFile(filepath.Join(upstream, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, upstream, "add", "new.txt")
	gitCmd(t, upstream, "commit", "-m", "second")
	gitCmd(t, upstream, "push")

	p := New(0)
	if err := p.Pull(context.Background(), clone); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(clone, "new.txt")); err != nil {
		t.Errorf("pulled file missing: %v", err)
	}
}

func TestPullWithoutRemoteIsNoop(t *testing.T) {
	repo := setupTestRepo(t)
	if err := New(0).Pull(context.Background(), repo); err != nil {
		t.Errorf("Pull() without remote = %v, want nil", err)
	}
}

func TestConcurrentCommitsSerialized(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := filepath.Join(repo, "page"+string(rune('a'+i))+".html")
			if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
				errs <- err
				return
			}
			if _, err := p.CommitAndPush(ctx, repo, "concurrent"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent CommitAndPush() error: %v", err)
	}
	if dirty, _ := p.HasChanges(ctx, repo); dirty {
		t.Error("changes left uncommitted")
	}
}

func TestTimeout(t *testing.T) {
	repo := setupTestRepo(t)
	p := New(time.Nanosecond)

	err := p.Validate(context.Background(), repo)
	if err == nil {
		t.Skip("git finished within a nanosecond")
	}
	if !errors.Is(err, vcs.ErrNotInVCS) || !errors.Is(err, vcs.ErrTimeout) {
		t.Errorf("Validate() under timeout = %v, want ErrNotInVCS and ErrTimeout", err)
	}
}
