package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// ExecContext executes a VCS command with timeout and context support.
// A command killed by the timeout returns an error wrapping ErrTimeout; a
// missing binary returns one wrapping ErrVCSNotAvailable.
//
// Example:
//
//	output, err := ExecContext(ctx, 30*time.Second, repoRoot, "git", "status", "--porcelain")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVCSNotAvailable, name)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ErrTimeout)
		}
		// Include stderr in error message for debugging
		if msg := strings.TrimSpace(stderr.String() + "\n" + stdout.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// ExecLines executes a command and returns the output as lines.
// Empty lines are filtered out.
func ExecLines(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) ([]string, error) {
	output, err := ExecContext(ctx, timeout, workDir, name, args...)
	if err != nil {
		return nil, err
	}

	return ParseLines(output), nil
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty lines.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// ===================
// Path Utilities
// ===================

// SanitizePath ensures a path is absolute and clean.
// Relative paths are resolved relative to the given base directory.
func SanitizePath(path string, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	if baseDir == "" {
		return "", fmt.Errorf("cannot resolve relative path without base directory")
	}

	return filepath.Clean(filepath.Join(baseDir, path)), nil
}

// ===================
// Error Utilities
// ===================

// IsExitError returns true if the error is an exit error with non-zero status.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// GetExitCode returns the exit code from an error, or -1 if not an exit error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
