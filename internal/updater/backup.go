package updater

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// DefaultBackupDir is where page backups go unless configured.
const DefaultBackupDir = "backups"

const backupTimeFormat = "20060102_150405"

// Backups copies pages aside before they are rewritten.
type Backups struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewBackups stores backups under dir on fsys.
func NewBackups(fsys afero.Fs, dir string) *Backups {
	if dir == "" {
		dir = DefaultBackupDir
	}
	return &Backups{fs: fsys, dir: dir, now: time.Now}
}

// Dir returns the backup directory.
func (b *Backups) Dir() string {
	return b.dir
}

// Create copies the file at path to <dir>/<stem>_backup_<timestamp>.html
// and returns the copy's path.
func (b *Backups) Create(path string) (string, error) {
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for backup: %w", path, err)
	}
	if err := b.fs.MkdirAll(b.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	backup := filepath.Join(b.dir, fmt.Sprintf("%s_backup_%s.html", stem, b.now().Format(backupTimeFormat)))
	if err := afero.WriteFile(b.fs, backup, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backup, nil
}

// Restore copies backup over path.
func (b *Backups) Restore(backup, path string) error {
	data, err := afero.ReadFile(b.fs, backup)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", backup, err)
	}
	if err := afero.WriteFile(b.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to restore %s: %w", path, err)
	}
	return nil
}

// List returns the backup files currently in the backup directory.
func (b *Backups) List() ([]string, error) {
	matches, err := afero.Glob(b.fs, filepath.Join(b.dir, "*_backup_*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return matches, nil
}

// Cleanup removes backups last modified more than maxAge ago and returns
// how many were removed. A missing backup directory is not an error.
func (b *Backups) Cleanup(maxAge time.Duration) (int, error) {
	if ok, _ := afero.DirExists(b.fs, b.dir); !ok {
		return 0, nil
	}

	files, err := b.List()
	if err != nil {
		return 0, err
	}

	cutoff := b.now().Add(-maxAge)
	removed := 0
	for _, f := range files {
		info, err := b.fs.Stat(f)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := b.fs.Remove(f); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", f, err)
		}
		removed++
	}
	return removed, nil
}

// CleanupDays removes backups older than days days.
func (b *Backups) CleanupDays(days int) (int, error) {
	return b.Cleanup(time.Duration(days) * 24 * time.Hour)
}
