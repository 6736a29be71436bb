// Package history keeps a SQLite journal of import and generate-db runs.
//
// The journal is append-only bookkeeping for the `history` command; nothing in
// the scan or index path reads it back.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one journaled command invocation.
type Run struct {
	ID          string        `json:"id"`
	Command     string        `json:"command"`
	Source      string        `json:"source"`
	Target      string        `json:"target,omitempty"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Files       int           `json:"files"`
	Unique      int           `json:"unique_digests"`
	Duplicates  int           `json:"duplicates"`
	Failures    int           `json:"failures"`
	BytesHashed int64         `json:"bytes_hashed"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Journal persists runs in SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string { return j.path }

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts run. Recording the same ID twice is an error.
func (j *Journal) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("record run: empty id")
	}
	if run.Status == "" {
		run.Status = StatusSucceeded
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, command, source, target, status, error_message,
            files, unique_digests, duplicates, failures, bytes_hashed,
            started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Command,
		run.Source,
		nullableString(run.Target),
		run.Status,
		nullableString(run.Error),
		run.Files,
		run.Unique,
		run.Duplicates,
		run.Failures,
		run.BytesHashed,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs first. A non-positive limit returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, command, source, target, status, error_message,
            files, unique_digests, duplicates, failures, bytes_hashed,
            started_at, duration_ms
        FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			target     sql.NullString
			errMessage sql.NullString
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(
			&run.ID, &run.Command, &run.Source, &target, &run.Status, &errMessage,
			&run.Files, &run.Unique, &run.Duplicates, &run.Failures, &run.BytesHashed,
			&startedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Target = target.String
		run.Error = errMessage.String
		if ts, parseErr := time.Parse(time.RFC3339Nano, startedAt); parseErr == nil {
			run.StartedAt = ts
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
