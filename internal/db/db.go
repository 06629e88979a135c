package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens or creates the database at the given path.
func OpenSQLite(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    total       INTEGER NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    errored     INTEGER NOT NULL,
    timed_out   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS suite_results (
    run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL,
    command     TEXT,
    exec        TEXT,
    dir         TEXT,
    env         TEXT,
    timeout_ms  INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL CHECK(status IN ('passed','failed','error','timeout')),
    exit_code   INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    error       TEXT,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    log_path    TEXT,
    PRIMARY KEY (run_id, position)
);
`

// Migrate applies the database schema.
func (d *DB) Migrate(ctx context.Context) error {
	var count int
	err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteSchemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset(ctx context.Context) error {
	tables := []string{"suite_results", "runs", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate(ctx)
}

// RecordRun stores a summary and its results in one transaction.
func (d *DB) RecordRun(ctx context.Context, s *suite.Summary) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, name, started_at, finished_at, duration_ms, total, passed, failed, errored, timed_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Name, formatTime(s.StartedAt), formatTime(s.FinishedAt), s.DurationMs,
		s.Total(), s.Passed, s.Failed, s.Errored, s.TimedOut,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range s.Results {
		execJSON, envJSON, err := descriptorColumns(r.Descriptor)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO suite_results (run_id, position, name, command, exec, dir, env, timeout_ms,
			   status, exit_code, duration_ms, error, started_at, finished_at, log_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.RunID, i, r.Descriptor.Name, nullString(r.Descriptor.Command), nullString(execJSON),
			nullString(r.Descriptor.Dir), nullString(envJSON), r.Descriptor.Timeout.Milliseconds(),
			string(r.Status), r.ExitCode, r.DurationMs, nullString(r.Err),
			formatTime(r.StartedAt), formatTime(r.FinishedAt), nullString(r.LogPath),
		)
		if err != nil {
			return fmt.Errorf("insert result %q: %w", r.Descriptor.Name, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means no limit.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT run_id, name, started_at, duration_ms, total, passed, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.RunID, &r.Name, &started, &r.DurationMs, &r.Total, &r.Passed, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads a full summary by run ID. Returns ErrNotFound for unknown IDs.
func (d *DB) GetRun(ctx context.Context, runID string) (*suite.Summary, error) {
	s := &suite.Summary{RunID: runID}
	var started, finished string
	var total int
	err := d.conn.QueryRowContext(ctx,
		`SELECT name, started_at, finished_at, duration_ms, total, passed, failed, errored, timed_out
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&s.Name, &started, &finished, &s.DurationMs, &total, &s.Passed, &s.Failed, &s.Errored, &s.TimedOut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if s.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if s.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx,
		`SELECT name, command, exec, dir, env, timeout_ms, status, exit_code, duration_ms,
		        error, started_at, finished_at, log_path
		 FROM suite_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	s.Results = make([]suite.Result, 0, total)
	for rows.Next() {
		var r suite.Result
		var command, execJSON, dir, envJSON, errMsg, logPath sql.NullString
		var timeoutMs int64
		var status, rStarted, rFinished string
		if err := rows.Scan(&r.Descriptor.Name, &command, &execJSON, &dir, &envJSON, &timeoutMs,
			&status, &r.ExitCode, &r.DurationMs, &errMsg, &rStarted, &rFinished, &logPath); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Descriptor.Command = command.String
		r.Descriptor.Dir = dir.String
		if err := restoreDescriptor(&r.Descriptor, execJSON.String, envJSON.String, timeoutMs); err != nil {
			return nil, err
		}
		r.Status = suite.Status(status)
		r.Err = errMsg.String
		r.LogPath = logPath.String
		if r.StartedAt, err = parseTime(rStarted); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(rFinished); err != nil {
			return nil, err
		}
		s.Results = append(s.Results, r)
	}
	return s, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timeLayout has fixed-width fractions so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
