package suite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}
}

func TestExecExecutor_ExitCodes(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		command string
		want    int
	}{
		{"exit 0", 0},
		{"exit 1", 1},
		{"exit 42", 42},
		{"definitely-not-a-command-xyz", 127},
	}
	e := &ExecExecutor{}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code, err := e.Execute(context.Background(), Command{Shell: tt.command, Stdout: &out, Stderr: &errOut})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestExecExecutor_SpawnError(t *testing.T) {
	e := &ExecExecutor{}
	code, err := e.Execute(context.Background(), Command{Args: []string{"definitely-not-a-binary-xyz"}})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
	if !strings.HasPrefix(err.Error(), "start:") {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestExecExecutor_BadDir(t *testing.T) {
	skipOnWindows(t)
	e := &ExecExecutor{}
	_, err := e.Execute(context.Background(), Command{Shell: "exit 0", Dir: "/definitely/not/a/dir"})
	if err == nil {
		t.Fatal("expected error for missing working directory")
	}
}

func TestExecExecutor_OutputEnvAndDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	var out bytes.Buffer
	e := &ExecExecutor{}
	code, err := e.Execute(context.Background(), Command{
		Shell:  `echo "$SUITE_GREETING"; pwd`,
		Dir:    dir,
		Env:    []string{"SUITE_GREETING=hello"},
		Stdout: &out,
	})
	if err != nil || code != 0 {
		t.Fatalf("code=%d err=%v", code, err)
	}
	if !strings.Contains(out.String(), "hello\n") {
		t.Errorf("missing env output: %q", out.String())
	}
	if !strings.Contains(out.String(), dir) {
		t.Errorf("missing working dir %q in output %q", dir, out.String())
	}
}

func TestExecExecutor_ContextDeadlineKills(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, err := (&ExecExecutor{}).Execute(ctx, Command{Args: []string{"sleep", "10"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1 for killed process", code)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("process was not killed promptly")
	}
}

func TestRunner_RealProcesses(t *testing.T) {
	skipOnWindows(t)
	var out bytes.Buffer
	runner := NewRunner(&ExecExecutor{}, Options{Stdout: &out, Stderr: &out, Stdin: strings.NewReader("")})

	ds := []Descriptor{
		{Name: "Unit", Command: "echo unit-ok; exit 0"},
		{Name: "Integration", Command: "exit 1"},
		{Name: "Missing", Exec: []string{"definitely-not-a-binary-xyz"}},
		{Name: "Lint", Command: "exit 0"},
	}
	summary, err := runner.Run(context.Background(), "real", ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []Status{}
	for _, r := range summary.Results {
		got = append(got, r.Status)
	}
	want := []Status{StatusPassed, StatusFailed, StatusError, StatusPassed}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d: %s, want %s", i, got[i], want[i])
		}
	}
	if summary.Passed != 2 || summary.Failed != 2 {
		t.Errorf("tally = %d passed %d failed", summary.Passed, summary.Failed)
	}
	if !strings.Contains(out.String(), "unit-ok") {
		t.Errorf("child output not forwarded: %q", out.String())
	}
}

func TestExecExecutor_GrandchildHoldingOutput(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		name    string
		command string
		want    int
	}{
		{"exit 0", "sleep 5 & echo started; exit 0", 0},
		{"exit 3", "sleep 5 & exit 3", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer // not an *os.File, so os/exec copies through a pipe
			start := time.Now()
			code, err := (&ExecExecutor{WaitDelay: 200 * time.Millisecond}).Execute(context.Background(),
				Command{Shell: tt.command, Stdout: &out, Stderr: &out})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
			if time.Since(start) > 3*time.Second {
				t.Errorf("Execute waited for the background process")
			}
		})
	}
}

func TestExecExecutor_KillsLeftoverProcesses(t *testing.T) {
	skipOnWindows(t)
	marker := filepath.Join(t.TempDir(), "marker")

	code, err := (&ExecExecutor{}).Execute(context.Background(),
		Command{Shell: "(sleep 1; touch '" + marker + "') & exit 0"})
	if err != nil || code != 0 {
		t.Fatalf("Execute = %d, %v", code, err)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("background process outlived its parent")
	}
}

func TestRunner_PrefixModeWithBackgroundGrandchild(t *testing.T) {
	skipOnWindows(t)
	var out bytes.Buffer
	runner := NewRunner(&ExecExecutor{WaitDelay: 200 * time.Millisecond}, Options{
		Stdout: &out,
		Stderr: &out,
		Stdin:  strings.NewReader(""),
		Prefix: true,
	})

	summary, err := runner.Run(context.Background(), "bg", []Descriptor{
		{Name: "bg", Command: "sleep 5 & echo bg-started; exit 0"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := summary.Results[0]
	if r.Status != StatusPassed || r.ExitCode != 0 || r.Err != "" {
		t.Errorf("result = %+v, want passed with exit 0", r)
	}
	if summary.Passed != 1 || summary.Failed != 0 {
		t.Errorf("tally = %d passed %d failed", summary.Passed, summary.Failed)
	}
	if !strings.Contains(out.String(), "[bg] bg-started") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunner_TimeoutStopsWholeProcessTree(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	order := filepath.Join(dir, "order")

	var out bytes.Buffer
	runner := NewRunner(&ExecExecutor{}, Options{Stdout: &out, Stderr: &out, Stdin: strings.NewReader("")})
	summary, err := runner.Run(context.Background(), "tree", []Descriptor{
		{Name: "Slow", Command: "(sleep 1; touch '" + marker + "'); true", Timeout: 200 * time.Millisecond},
		{Name: "Next", Command: "test -e '" + marker + "' && echo late >> '" + order + "'; true"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Results[0].Status != StatusTimeout || summary.Results[1].Status != StatusPassed {
		t.Fatalf("statuses = %s, %s", summary.Results[0].Status, summary.Results[1].Status)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("subshell of the timed-out suite kept running")
	}
	if _, err := os.Stat(order); err == nil {
		t.Error("timed-out suite's subshell ran into the next suite")
	}
}
