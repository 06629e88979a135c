package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Command is one child process invocation.
type Command struct {
	Shell  string   // run through sh -c (cmd /C on Windows)
	Args   []string // run directly when set; Shell is ignored
	Dir    string
	Env    []string // appended to the runner's own environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor abstracts process execution for testability.
//
// Execute blocks until the process terminates. It returns the exit code and a
// nil error when the process ran to completion, whatever its exit code. A
// non-nil error means the process could not be started or waited on; the exit
// code is then -1.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (exitCode int, err error)
}

// waitDelay bounds how long Wait keeps copying output after the process
// exits, for children that leave grandchildren holding the pipes open.
const waitDelay = 5 * time.Second

// ExecExecutor implements Executor with os/exec.
//
// Each child runs in its own process group. Cancelling ctx kills the whole
// group, and anything still in the group when the child exits is killed too,
// so no process outlives its suite.
type ExecExecutor struct {
	WaitDelay time.Duration // defaults to 5s
	Logger    *zap.Logger
}

func (e *ExecExecutor) Execute(ctx context.Context, c Command) (int, error) {
	cmd := buildCmd(ctx, c)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = waitDelay
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return kill(cmd) }

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start: %w", err)
	}

	err := cmd.Wait()
	e.reap(cmd)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, exec.ErrWaitDelay):
		// The child exited but something it started kept the output open.
		code := cmd.ProcessState.ExitCode()
		e.logger().Warn("child exited with output still open",
			zap.Int("pid", cmd.Process.Pid),
			zap.Int("exit_code", code),
			zap.Duration("wait_delay", cmd.WaitDelay))
		return code, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait: %w", err)
}

// reap kills whatever is left in the child's process group once the child
// itself has exited.
func (e *ExecExecutor) reap(cmd *exec.Cmd) {
	err := kill(cmd)
	switch {
	case err == nil:
		e.logger().Warn("killed processes left behind by child", zap.Int("pgid", cmd.Process.Pid))
	case !errors.Is(err, os.ErrProcessDone):
		e.logger().Debug("kill leftover processes", zap.Error(err))
	}
}

func (e *ExecExecutor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func buildCmd(ctx context.Context, c Command) *exec.Cmd {
	if len(c.Args) > 0 {
		return exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	}
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", c.Shell)
	}
	return exec.CommandContext(ctx, "sh", "-c", c.Shell)
}
