// Package state records command executions and persists user-disabled
// flags across restarts.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Execution statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 50

// interruptedError is recorded for executions a previous process left running.
const interruptedError = "interrupted: process exited before the execution settled"

// Fixed-width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrUnknownExecution is returned by Finish for an id that was never begun.
var ErrUnknownExecution = errors.New("unknown execution")

// Record is one row of execution history.
type Record struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Store reads and writes execution history.
type Store struct {
	db *sql.DB
}

// NewStore wraps a database opened by storage.OpenSQLite.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Begin records a running execution.
func (s *Store) Begin(ctx context.Context, id, command string, at time.Time) error {
	if id == "" || command == "" {
		return fmt.Errorf("execution id and command are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_log(id, command, status, started_at)
VALUES(?, ?, ?, ?);
`, id, command, StatusRunning, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Finish settles a running execution with status and an optional error.
func (s *Store) Finish(ctx context.Context, id, status, errMsg string, at time.Time) error {
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("invalid final status %q", status)
	}

	var lastError any
	if errMsg != "" {
		lastError = errMsg
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE execution_log
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, formatTime(at), lastError, id)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	return nil
}

// History returns the most recent executions of command, newest first.
func (s *Store) History(ctx context.Context, command string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, command, status, started_at, completed_at, last_error
FROM execution_log
WHERE command = ?
ORDER BY started_at DESC, id DESC
LIMIT ?;
`, command, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			rec       Record
			started   string
			completed sql.NullString
			lastError sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Command, &rec.Status, &started, &completed, &lastError); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", rec.ID, err)
		}
		if completed.Valid {
			at, err := parseTime(completed.String)
			if err != nil {
				return nil, fmt.Errorf("parse completed_at for %s: %w", rec.ID, err)
			}
			rec.CompletedAt = &at
		}
		rec.Error = lastError.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// RecoverInterrupted marks executions still running from an earlier process
// as failed and returns how many were updated.
func (s *Store) RecoverInterrupted(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE execution_log
SET status = ?, completed_at = ?, last_error = ?
WHERE status = ?;
`, StatusFailed, formatTime(at), interruptedError, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted executions: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes settled executions that completed before now minus
// retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM execution_log
WHERE status != ? AND completed_at < ?;
`, StatusRunning, formatTime(now.Add(-retention)))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// SaveEnabled persists a command's user-enabled flag.
func (s *Store) SaveEnabled(ctx context.Context, command string, enabled bool) error {
	if command == "" {
		return fmt.Errorf("command name is empty")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO command_state(command, enabled, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(command) DO UPDATE SET
  enabled = excluded.enabled,
  updated_at = excluded.updated_at;
`, command, enabled, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert command state: %w", err)
	}
	return nil
}

// LoadEnabled returns every persisted user-enabled flag keyed by command.
func (s *Store) LoadEnabled(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT command, enabled FROM command_state;")
	if err != nil {
		return nil, fmt.Errorf("read command state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			name    string
			enabled bool
		)
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, fmt.Errorf("scan command state: %w", err)
		}
		out[name] = enabled
	}
	return out, rows.Err()
}
