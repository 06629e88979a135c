package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FatalError is an error in the runner's own control logic, such as a
// malformed suite list. It aborts the whole run; individual suite failures
// never produce one.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Listener receives progress callbacks from a run. Both methods are called
// from the runner's goroutine.
type Listener interface {
	SuiteStarted(index int, d Descriptor)
	SuiteFinished(index int, r Result)
}

// LogSink opens a per-suite log file. The runner writes an ANSI-stripped copy
// of the suite's output to it and closes it when the suite finishes.
type LogSink interface {
	OpenSuiteLog(runID string, index int, d Descriptor) (w io.WriteCloser, path string, err error)
}

// Options configures a Runner. Zero values select inherited stdio and no
// listener, log sink or logging.
type Options struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Prefix   bool // prefix each output line with "[Suite Name]"
	Listener Listener
	LogSink  LogSink
	Logger   *zap.Logger
	RunID    string // generated when empty
}

// Runner executes suites one at a time, in declaration order.
type Runner struct {
	exec   Executor
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a Runner with the given executor.
func NewRunner(exec Executor, opts Options) *Runner {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		exec:   exec,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes every descriptor in order and returns the summary.
//
// Suite failures are recorded in the summary, never returned. The returned
// error is always a *FatalError: the list was malformed (nothing ran) or ctx
// was cancelled between suites (the summary covers the suites that ran).
func (r *Runner) Run(ctx context.Context, name string, ds []Descriptor) (*Summary, error) {
	if err := ValidateDescriptors(ds); err != nil {
		return nil, &FatalError{Op: "validate suites", Err: err}
	}

	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := &Summary{
		RunID:     runID,
		Name:      name,
		StartedAt: r.now(),
		Results:   make([]Result, 0, len(ds)),
	}
	log := r.logger.With(zap.String("run_id", runID), zap.String("run", name))
	log.Info("run started", zap.Int("suites", len(ds)))

	for i, d := range ds {
		if err := ctx.Err(); err != nil {
			r.finish(summary)
			return summary, &FatalError{Op: fmt.Sprintf("before suite %q", d.Name), Err: err}
		}

		if r.opts.Listener != nil {
			r.opts.Listener.SuiteStarted(i, d)
		}
		res := r.runOne(ctx, runID, i, d, log)
		summary.Add(res)
		if r.opts.Listener != nil {
			r.opts.Listener.SuiteFinished(i, res)
		}
	}

	r.finish(summary)
	log.Info("run finished",
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration()))
	return summary, nil
}

func (r *Runner) finish(s *Summary) {
	s.FinishedAt = r.now()
	s.DurationMs = int(s.FinishedAt.Sub(s.StartedAt).Milliseconds())
}

// runOne executes a single suite and converts every outcome into a Result.
func (r *Runner) runOne(ctx context.Context, runID string, index int, d Descriptor, log *zap.Logger) Result {
	log = log.With(zap.String("suite", d.Name), zap.Int("index", index))

	suiteCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.Timeout > 0 {
		suiteCtx, cancel = context.WithTimeout(ctx, d.Timeout)
	}
	defer cancel()

	stdout, stderr, logPath, closeOutput := r.outputFor(runID, index, d, log)

	cmd := Command{
		Shell:  d.Command,
		Args:   d.Exec,
		Dir:    d.Dir,
		Env:    d.environ(),
		Stdin:  r.opts.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	log.Debug("suite started", zap.String("command", d.CommandLine()))
	start := r.now()
	exitCode, err := r.exec.Execute(suiteCtx, cmd)
	finish := r.now()
	closeOutput()

	res := Result{
		Descriptor: d,
		ExitCode:   exitCode,
		DurationMs: int(finish.Sub(start).Milliseconds()),
		StartedAt:  start,
		FinishedAt: finish,
		LogPath:    logPath,
	}

	switch {
	case d.Timeout > 0 && errors.Is(suiteCtx.Err(), context.DeadlineExceeded):
		res.Status = StatusTimeout
		res.ExitCode = -1
		res.Err = fmt.Sprintf("timed out after %s", d.Timeout)
		log.Warn("suite timed out", zap.Duration("timeout", d.Timeout))
	case err != nil:
		res.Status = StatusError
		res.ExitCode = -1
		res.Err = err.Error()
		log.Warn("suite could not run", zap.Error(err))
	case exitCode == 0:
		res.Status = StatusPassed
		log.Debug("suite passed", zap.Int("duration_ms", res.DurationMs))
	default:
		res.Status = StatusFailed
		res.Err = fmt.Sprintf("exit code %d", exitCode)
		log.Debug("suite failed", zap.Int("exit_code", exitCode), zap.Int("duration_ms", res.DurationMs))
	}
	return res
}

// outputFor builds the stdout/stderr writers for one suite. In the default
// mode the child writes straight to the runner's streams; prefix mode and the
// log sink interpose line writers. The returned func flushes and closes them.
func (r *Runner) outputFor(runID string, index int, d Descriptor, log *zap.Logger) (io.Writer, io.Writer, string, func()) {
	stdout, stderr := r.opts.Stdout, r.opts.Stderr
	var flushers []*lineWriter

	if r.opts.Prefix {
		var mu sync.Mutex
		out := newLineWriter(&mu, stdout, "["+d.Name+"] ", nil)
		errOut := newLineWriter(&mu, stderr, "["+d.Name+"-ERROR] ", nil)
		stdout, stderr = out, errOut
		flushers = append(flushers, out, errOut)
	}

	var logFile io.WriteCloser
	var logPath string
	if r.opts.LogSink != nil {
		f, path, err := r.opts.LogSink.OpenSuiteLog(runID, index, d)
		if err != nil {
			log.Warn("open suite log", zap.Error(err))
		} else {
			logFile, logPath = f, path
			var mu sync.Mutex
			logOut := newLineWriter(&mu, f, "", stripANSI)
			logErr := newLineWriter(&mu, f, "", stripANSI)
			stdout = io.MultiWriter(stdout, logOut)
			stderr = io.MultiWriter(stderr, logErr)
			flushers = append(flushers, logOut, logErr)
		}
	}

	closeFn := func() {
		for _, w := range flushers {
			if err := w.Flush(); err != nil {
				log.Warn("flush suite output", zap.Error(err))
			}
		}
		if logFile != nil {
			if err := logFile.Close(); err != nil {
				log.Warn("close suite log", zap.Error(err))
			}
		}
	}
	return stdout, stderr, logPath, closeFn
}
