// Package vcs holds the version-control contract the updater drives and the
// helpers shared by its implementations.
//
// # Usage
//
//	p := git.New(2 * time.Minute)
//	if err := p.Validate(ctx, targetPath); err != nil {
//	    // errors.Is(err, vcs.ErrNotInVCS)
//	}
//	committed, err := p.CommitAndPush(ctx, targetPath, message)
//
// # Implementations
//
//   - internal/vcs/git: the git binary, driven over os/exec
package vcs

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single VCS command unless configured otherwise.
const DefaultTimeout = 2 * time.Minute

// Porcelain is the small set of working-copy operations a synchronization
// run needs. Implementations serialize mutating calls per repository.
type Porcelain interface {
	// Validate checks that path is the root of a usable working copy.
	// It returns an error wrapping ErrNotInVCS when it is not.
	Validate(ctx context.Context, path string) error

	// Pull brings path up to date with its remote. Repositories without a
	// remote are left alone.
	Pull(ctx context.Context, path string) error

	// CommitAndPush stages every change under path and, if anything is
	// staged, commits it with message and pushes. It reports whether a
	// commit was made.
	CommitAndPush(ctx context.Context, path, message string) (bool, error)
}
