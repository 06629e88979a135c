// Package artifacts keeps per-run files on disk: the run summary and one
// log per suite.
//
// Layout:
//
//	<base>/<run-id>/summary.json
//	<base>/<run-id>/suites/00-unit-tests.log
package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// Store manages run artifacts on disk.
type Store struct {
	baseDir string // defaults to ~/.suiterun/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.suiterun/runs, creating the directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".suiterun", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// RunDir returns the directory for a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func (s *Store) summaryPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "summary.json")
}

// SuiteLogPath returns the log file path for the suite at index.
func (s *Store) SuiteLogPath(runID string, index int, name string) string {
	return filepath.Join(s.RunDir(runID), "suites", fmt.Sprintf("%02d-%s.log", index, slug(name)))
}

// OpenSuiteLog creates the log file for one suite. It implements suite.LogSink.
func (s *Store) OpenSuiteLog(runID string, index int, d suite.Descriptor) (io.WriteCloser, string, error) {
	path := s.SuiteLogPath(runID, index, d.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("mkdir suite log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create suite log: %w", err)
	}
	fmt.Fprintf(f, "# %s\n# %s\n", d.Name, d.CommandLine())
	return f, path, nil
}

// SaveSummary writes the summary JSON for a run. Readers never observe a
// partially written file.
func (s *Store) SaveSummary(summary *suite.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeFileAtomic(s.summaryPath(summary.RunID), append(data, '\n'))
}

// GetSummary reads the summary JSON for a run.
func (s *Store) GetSummary(runID string) (*suite.Summary, error) {
	path := s.summaryPath(runID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	var summary suite.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &summary, nil
}

// writeFileAtomic writes data to a temp file beside path, syncs it and
// renames it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// ReadSuiteLog returns the captured log for a suite.
func (s *Store) ReadSuiteLog(runID string, index int, name string) (string, error) {
	data, err := os.ReadFile(s.SuiteLogPath(runID, index, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// slug turns a suite name into a file-name-safe token.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "suite"
	}
	return out
}
