package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/suiterun/internal/suite"
)

func sampleSummary() *suite.Summary {
	s := &suite.Summary{
		RunID:      "run-1",
		Name:       "all",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		DurationMs: 4200,
	}
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Unit", Command: "npm run test:unit"}, Status: suite.StatusPassed, DurationMs: 1500})
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Integration", Command: "npm run test:integration"}, Status: suite.StatusFailed, ExitCode: 1, Err: "exit code 1", DurationMs: 2000, LogPath: "/tmp/01-integration.log"})
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Lint", Command: "npm run lint"}, Status: suite.StatusPassed, DurationMs: 700})
	return s
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "TEXT": FormatText, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatText, Options{}))
	out := buf.String()

	assert.Contains(t, out, "Unit: PASSED [1.5s]\n")
	assert.Contains(t, out, "Integration: FAILED [2.0s]\n")
	assert.Contains(t, out, "Lint: PASSED [0.7s]\n")
	assert.Contains(t, out, "Failed suites:")
	assert.Contains(t, out, "  - Integration: exit code 1")
	assert.Contains(t, out, "    log: /tmp/01-integration.log")
	assert.True(t, strings.HasSuffix(out, "RESULTS: 2 passed, 1 failed (66.7% success)\n"), out)

	assert.Less(t, strings.Index(out, "Unit"), strings.Index(out, "Integration"))
	assert.Less(t, strings.Index(out, "Integration"), strings.Index(out, "Lint"))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatTable, Options{}))
	out := buf.String()

	assert.Contains(t, out, "Suite Results: all (4.2s)")
	assert.Contains(t, out, "Integration")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "RESULTS: 2 passed, 1 failed")
}

func TestWriteEmptySummary(t *testing.T) {
	for _, f := range []Format{FormatTable, FormatText} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, &suite.Summary{}, f, Options{}))
		assert.Contains(t, buf.String(), "RESULTS: 0 passed, 0 failed\n", f)
		assert.NotContains(t, buf.String(), "Failed suites", f)
	}
}

func TestWriteStatusLabels(t *testing.T) {
	s := &suite.Summary{}
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Spawn"}, Status: suite.StatusError, ExitCode: -1, Err: "start: exec: \"nope\": executable file not found in $PATH"})
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Slow"}, Status: suite.StatusTimeout, ExitCode: -1, Err: "timed out after 2m0s"})

	var text bytes.Buffer
	require.NoError(t, Write(&text, s, FormatText, Options{}))
	assert.Contains(t, text.String(), "Spawn: FAILED (error) [0.0s]\n")
	assert.Contains(t, text.String(), "Slow: FAILED (timeout) [0.0s]\n")

	var tbl bytes.Buffer
	require.NoError(t, Write(&tbl, s, FormatTable, Options{}))
	assert.Contains(t, tbl.String(), "FAILED (error)")
	assert.Contains(t, tbl.String(), "FAILED (timeout)")
	assert.Contains(t, tbl.String(), "RESULTS: 0 passed, 2 failed (0.0% success)")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatJSON, Options{}))

	// JSON output is followed by the failure details and result line.
	dec := json.NewDecoder(&buf)
	var got map[string]any
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, float64(2), got["passed"])
	assert.Equal(t, float64(1), got["failed"])
	assert.Equal(t, false, got["all_passed"])
	assert.Len(t, got["results"], 3)
}

func TestWriteJUnit(t *testing.T) {
	s := sampleSummary()
	s.Add(suite.Result{Descriptor: suite.Descriptor{Name: "Security", Exec: []string{"node", "sec.js"}}, Status: suite.StatusError, ExitCode: -1, Err: "start: permission denied"})

	var buf bytes.Buffer
	require.NoError(t, WriteJUnit(&buf, s))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 4, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
	require.Len(t, doc.Suites, 1)
	cases := doc.Suites[0].Cases
	require.Len(t, cases, 4)

	assert.Nil(t, cases[0].Failure)
	assert.Equal(t, "1.500", cases[0].Time)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "exit code 1", cases[1].Failure.Message)
	assert.Contains(t, cases[1].Failure.Body, "command: npm run test:integration")
	require.NotNil(t, cases[3].Error)
	assert.Equal(t, "error", cases[3].Error.Type)
	assert.Contains(t, cases[3].Error.Body, "command: node sec.js")
}

func TestWriteJUnitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "junit.xml")
	require.NoError(t, WriteJUnitFile(path, sampleSummary()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<testcase name="Integration"`)
}
