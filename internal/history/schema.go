package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// journalVersion is stored in SQLite's user_version header field. A journal
// written by another version is refused rather than migrated; it only holds
// run summaries and can be deleted.
const journalVersion = 1

// ErrSchemaMismatch reports a journal created with a different layout.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// ensureSchema creates the runs table in a fresh database and checks the
// layout version of an existing one.
func (j *Journal) ensureSchema(ctx context.Context) error {
	var version int
	if err := j.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read history version: %w", err)
	}
	switch version {
	case journalVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %s has version %d, want %d; remove it to start a new history",
			ErrSchemaMismatch, j.path, version, journalVersion)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{schemaSQL, fmt.Sprintf("PRAGMA user_version = %d", journalVersion)} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create history schema: %w", err)
		}
	}
	return tx.Commit()
}
