package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// PG is the PostgreSQL history backend.
type PG struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database named by a postgres:// DSN.
func OpenPostgres(ctx context.Context, dsn string) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PG{pool: pool}, nil
}

// Close releases the pool.
func (p *PG) Close() error {
	p.pool.Close()
	return nil
}

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
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
    command     TEXT NOT NULL DEFAULT '',
    exec        JSONB,
    dir         TEXT NOT NULL DEFAULT '',
    env         JSONB,
    timeout_ms  BIGINT NOT NULL DEFAULT 0,
    status      TEXT NOT NULL CHECK(status IN ('passed','failed','error','timeout')),
    exit_code   INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    log_path    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, position)
);
`

// Migrate applies the database schema.
func (p *PG) Migrate(ctx context.Context) error {
	var count int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, postgresSchemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit(ctx)
}

// Reset drops all tables and re-applies the schema.
func (p *PG) Reset(ctx context.Context) error {
	tables := []string{"suite_results", "runs", "schema_version"}
	for _, t := range tables {
		if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return p.Migrate(ctx)
}

// RecordRun stores a summary and its results in one transaction.
func (p *PG) RecordRun(ctx context.Context, s *suite.Summary) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (run_id, name, started_at, finished_at, duration_ms, total, passed, failed, errored, timed_out)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.RunID, s.Name, s.StartedAt, s.FinishedAt, s.DurationMs,
		s.Total(), s.Passed, s.Failed, s.Errored, s.TimedOut,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, r := range s.Results {
		execJSON, envJSON, err := descriptorColumns(r.Descriptor)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO suite_results (run_id, position, name, command, exec, dir, env, timeout_ms,
			   status, exit_code, duration_ms, error, started_at, finished_at, log_path)
			 VALUES ($1, $2, $3, $4, NULLIF($5, '')::jsonb, $6, NULLIF($7, '')::jsonb, $8, $9, $10, $11, $12, $13, $14, $15)`,
			s.RunID, i, r.Descriptor.Name, r.Descriptor.Command, execJSON, r.Descriptor.Dir, envJSON,
			r.Descriptor.Timeout.Milliseconds(), string(r.Status), r.ExitCode, r.DurationMs, r.Err,
			r.StartedAt, r.FinishedAt, r.LogPath,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return tx.Commit(ctx)
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means no limit.
func (p *PG) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := p.pool.Query(ctx,
		`SELECT run_id, name, started_at, duration_ms, total, passed, failed
		 FROM runs ORDER BY started_at DESC LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunRecord, error) {
		var r RunRecord
		err := row.Scan(&r.RunID, &r.Name, &r.StartedAt, &r.DurationMs, &r.Total, &r.Passed, &r.Failed)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return runs, nil
}

// GetRun loads a full summary by run ID. Returns ErrNotFound for unknown IDs.
func (p *PG) GetRun(ctx context.Context, runID string) (*suite.Summary, error) {
	s := &suite.Summary{RunID: runID}
	var total int
	err := p.pool.QueryRow(ctx,
		`SELECT name, started_at, finished_at, duration_ms, total, passed, failed, errored, timed_out
		 FROM runs WHERE run_id = $1`, runID,
	).Scan(&s.Name, &s.StartedAt, &s.FinishedAt, &s.DurationMs, &total, &s.Passed, &s.Failed, &s.Errored, &s.TimedOut)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT name, command, COALESCE(exec::text, ''), dir, COALESCE(env::text, ''), timeout_ms,
		        status, exit_code, duration_ms, error, started_at, finished_at, log_path
		 FROM suite_results WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (suite.Result, error) {
		var r suite.Result
		var execJSON, envJSON, status string
		var timeoutMs int64
		if err := row.Scan(&r.Descriptor.Name, &r.Descriptor.Command, &execJSON, &r.Descriptor.Dir, &envJSON,
			&timeoutMs, &status, &r.ExitCode, &r.DurationMs, &r.Err, &r.StartedAt, &r.FinishedAt, &r.LogPath); err != nil {
			return r, err
		}
		r.Status = suite.Status(status)
		return r, restoreDescriptor(&r.Descriptor, execJSON, envJSON, timeoutMs)
	})
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	s.Results = make([]suite.Result, 0, total)
	s.Results = append(s.Results, results...)
	return s, nil
}
