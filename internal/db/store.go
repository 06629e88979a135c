// Package db records run history. SQLite is the default backend; a
// postgres:// DSN selects PostgreSQL.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// ErrNotFound is returned when a run ID has no record.
var ErrNotFound = errors.New("run not found")

// Store is a run history backend.
type Store interface {
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	RecordRun(ctx context.Context, s *suite.Summary) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, runID string) (*suite.Summary, error)
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*PG)(nil)
)

// RunRecord is one row of the run history listing.
type RunRecord struct {
	RunID      string
	Name       string
	StartedAt  time.Time
	DurationMs int
	Total      int
	Passed     int
	Failed     int
}

// SuccessRate returns the passed percentage, or 0 for an empty run.
func (r RunRecord) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total) * 100
}

// DefaultDBPath returns ~/.suiterun/suiterun.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".suiterun")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "suiterun.db"), nil
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens the store named by dsn and applies migrations. An empty dsn
// opens the default SQLite file.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsPostgresDSN(dsn) {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, nil
	}

	if dsn == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dsn = path
	}
	d, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// descriptorColumns flattens the parts of a descriptor that do not fit a
// scalar column.
func descriptorColumns(d suite.Descriptor) (execJSON, envJSON string, err error) {
	if len(d.Exec) > 0 {
		b, err := json.Marshal(d.Exec)
		if err != nil {
			return "", "", fmt.Errorf("marshal exec: %w", err)
		}
		execJSON = string(b)
	}
	if len(d.Env) > 0 {
		b, err := json.Marshal(d.Env)
		if err != nil {
			return "", "", fmt.Errorf("marshal env: %w", err)
		}
		envJSON = string(b)
	}
	return execJSON, envJSON, nil
}

func restoreDescriptor(d *suite.Descriptor, execJSON, envJSON string, timeoutMs int64) error {
	if execJSON != "" {
		if err := json.Unmarshal([]byte(execJSON), &d.Exec); err != nil {
			return fmt.Errorf("unmarshal exec: %w", err)
		}
	}
	if envJSON != "" {
		if err := json.Unmarshal([]byte(envJSON), &d.Env); err != nil {
			return fmt.Errorf("unmarshal env: %w", err)
		}
	}
	d.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return nil
}
