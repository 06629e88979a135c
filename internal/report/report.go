// Package report renders a run summary for people and for CI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// Format selects how a summary is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatText  Format = "text"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, text or json)", s)
	}
}

// Options tunes rendering.
type Options struct {
	Color bool // colored table style, for terminals
}

// Write renders summary to w in the given format.
func Write(w io.Writer, summary *suite.Summary, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatText:
		writeText(w, summary)
	case FormatTable, "":
		writeTable(w, summary, opts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	writeFailures(w, summary)
	fmt.Fprintln(w, ResultLine(summary))
	return nil
}

// ResultLine is the aggregate count line, e.g. "RESULTS: 2 passed, 1 failed (66.7% success)".
func ResultLine(s *suite.Summary) string {
	line := fmt.Sprintf("RESULTS: %d passed, %d failed", s.Passed, s.Failed)
	if s.Total() > 0 {
		line += fmt.Sprintf(" (%.1f%% success)", s.SuccessRate())
	}
	return line
}

// Label is the per-suite status word.
func Label(r suite.Result) string {
	if r.Success() {
		return "PASSED"
	}
	return "FAILED"
}

func writeTable(w io.Writer, s *suite.Summary, opts Options) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	title := "Suite Results"
	if s.Name != "" {
		title = fmt.Sprintf("Suite Results: %s", s.Name)
	}
	t.SetTitle(fmt.Sprintf("%s (%s)", title, formatDuration(s.Duration())))
	t.AppendHeader(table.Row{"#", "Suite", "Status", "Exit", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Suite", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, r := range s.Results {
		exit := fmt.Sprintf("%d", r.ExitCode)
		if r.ExitCode < 0 {
			exit = "-"
		}
		t.AppendRow(table.Row{
			i + 1,
			r.Descriptor.Name,
			statusCell(r),
			exit,
			formatDuration(time.Duration(r.DurationMs) * time.Millisecond),
			r.Err,
		})
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		fmt.Sprintf("%d/%d", s.Passed, s.Total()),
		"",
		formatDuration(s.Duration()),
		"",
	})

	t.SetStyle(table.StyleLight)
	if opts.Color {
		if s.AllPassed() {
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		} else {
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		}
	}
	t.Render()
}

func statusCell(r suite.Result) string {
	switch r.Status {
	case suite.StatusError:
		return "FAILED (error)"
	case suite.StatusTimeout:
		return "FAILED (timeout)"
	}
	return Label(r)
}

func writeText(w io.Writer, s *suite.Summary) {
	for _, r := range s.Results {
		fmt.Fprintf(w, "%s: %s [%s]\n", r.Descriptor.Name, statusCell(r),
			formatDuration(time.Duration(r.DurationMs)*time.Millisecond))
	}
}

func writeFailures(w io.Writer, s *suite.Summary) {
	failures := s.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed suites:")
	for _, r := range failures {
		fmt.Fprintf(w, "  - %s: %s\n", r.Descriptor.Name, r.Err)
		fmt.Fprintf(w, "    command: %s\n", r.Descriptor.CommandLine())
		if r.LogPath != "" {
			fmt.Fprintf(w, "    log: %s\n", r.LogPath)
		}
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, s *suite.Summary) error {
	out := struct {
		*suite.Summary
		AllPassed   bool    `json:"all_passed"`
		SuccessRate float64 `json:"success_rate"`
	}{s, s.AllPassed(), s.SuccessRate()}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatDuration renders seconds with one decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
