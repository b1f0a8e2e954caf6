package vcs

import "errors"

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // path is not a working copy
//	}
var (
	// ErrNotInVCS is returned when a path is not inside a usable
	// repository.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the VCS binary is not installed
	// or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrDetached is returned when an operation requires being on
	// a branch but HEAD is detached.
	ErrDetached = errors.New("not on a branch")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrMergeRequired is returned when a pull results in divergent
	// histories that require a merge.
	ErrMergeRequired = errors.New("merge required")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsRetryable returns true if the error is likely to succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts are often transient
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Push rejections might succeed after a pull
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return errors.Is(err, ErrMergeRequired)
}

// IsUserActionRequired returns true if the error requires someone to fix
// the working copy by hand.
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConflicts) ||
		errors.Is(err, ErrMergeRequired) ||
		errors.Is(err, ErrPushRejected)
}

// IsFatal returns true if the error means no further VCS operation on the
// path can succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotInVCS) || errors.Is(err, ErrVCSNotAvailable)
}
