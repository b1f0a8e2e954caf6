// Package history keeps a SQLite log of synchronization runs.
//
// The database runs in embedded mode with WAL so a watch loop can record
// runs while the CLI reads them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dziadu-dev/cardsync/internal/updater"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded synchronization.
type Run struct {
	ID              int64
	Started         time.Time
	Duration        time.Duration
	Status          string
	Folders         []string
	Added           int
	Modified        int
	Removed         int
	SectionsRemoved int
	CacheHits       int
	Error           string
}

// DB wraps the history database connection.
type DB struct {
	conn *sql.DB
	path string
}

var _ updater.Recorder = (*DB)(nil)

// Open opens or creates the database at path and ensures its schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the runs table if it doesn't exist. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		folders TEXT NOT NULL,  -- JSON array
		added INTEGER NOT NULL DEFAULT 0,
		modified INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		sections_removed INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Insert stores run and returns its ID.
func (db *DB) Insert(ctx context.Context, run *Run) (int64, error) {
	folders := run.Folders
	if folders == nil {
		folders = []string{}
	}
	foldersJSON, err := json.Marshal(folders)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal folders: %w", err)
	}

	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO runs (
		started_at, duration_ms, status, folders,
		added, modified, removed, sections_removed, cache_hits, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Started.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.Status,
		string(foldersJSON),
		run.Added,
		run.Modified,
		run.Removed,
		run.SectionsRemoved,
		run.CacheHits,
		errText,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// RecordRun implements updater.Recorder.
func (db *DB) RecordRun(ctx context.Context, report *updater.Report) error {
	_, err := db.Insert(ctx, FromReport(report))
	return err
}

// FromReport converts a finished run report into a Run.
func FromReport(report *updater.Report) *Run {
	added, removed, sections := report.Totals()
	return &Run{
		Started:         report.Started,
		Duration:        report.Duration,
		Status:          string(report.Status),
		Folders:         report.Summary.Folders,
		Added:           added,
		Modified:        len(report.Summary.Modified),
		Removed:         removed,
		SectionsRemoved: sections,
		CacheHits:       report.CacheHits,
		Error:           report.ErrorMessage(),
	}
}

// Query filters Recent.
type Query struct {
	// Since excludes runs started before it. Zero means no lower bound.
	Since time.Time

	// Status keeps only runs with this status when set.
	Status string

	// Limit caps the number of runs. Zero or less means 50.
	Limit int
}

// Recent returns runs matching q, newest first.
func (db *DB) Recent(ctx context.Context, q Query) ([]Run, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, started_at, duration_ms, status, folders,
		added, modified, removed, sections_removed, cache_hits, COALESCE(error, '')
	FROM runs WHERE 1=1`
	var args []any
	if !q.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, q.Status)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			started     string
			durationMS  int64
			foldersJSON string
		)
		if err := rows.Scan(&r.ID, &started, &durationMS, &r.Status, &foldersJSON,
			&r.Added, &r.Modified, &r.Removed, &r.SectionsRemoved, &r.CacheHits, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(foldersJSON), &r.Folders); err != nil {
			return nil, fmt.Errorf("invalid folders for run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Count returns the number of recorded runs.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// deleted.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
	DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
