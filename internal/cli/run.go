package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/suiterun/internal/artifacts"
	"github.com/lucasnoah/suiterun/internal/config"
	"github.com/lucasnoah/suiterun/internal/report"
	"github.com/lucasnoah/suiterun/internal/suite"
)

// newExecutor builds the process executor; tests replace it.
var newExecutor = func() suite.Executor { return &suite.ExecExecutor{Logger: logger} }

// newArtifactStore opens the per-run artifact store; tests replace it.
var newArtifactStore = func(dir string) (*artifacts.Store, error) {
	if dir != "" {
		return artifacts.NewStore(dir), nil
	}
	return artifacts.DefaultStore()
}

var runCmd = &cobra.Command{
	Use:   "run [suite-names...]",
	Short: "Run the suites in order and print a summary",
	Long: `Run executes every suite in the resolved suite file, one at a time and in
declaration order. Naming suites restricts the run to them, still in
declaration order.`,
	RunE: runSuites,
}

func runSuites(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	formatFlag, _ := cmd.Flags().GetString("format")
	junitPath, _ := cmd.Flags().GetString("junit")
	prefix, _ := cmd.Flags().GetBool("prefix")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	noLogs, _ := cmd.Flags().GetBool("no-logs")
	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")

	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	cfg, err := loadSuiteFile()
	if err != nil {
		return fatal("load suites", err)
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", e)
		}
		return fatal("validate suites", fmt.Errorf("suite file has %d validation error(s)", len(errs)))
	}
	ds, err := cfg.Descriptors(args)
	if err != nil {
		return fatal("select suites", err)
	}
	srvCfg, err := cfg.ServerConfig()
	if err != nil {
		return fatal("server config", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	// With --format json the document is the only thing on stdout; banners
	// and child stdout go to stderr.
	liveOut := out
	if format == report.FormatJSON {
		liveOut = errOut
	}

	var store *artifacts.Store
	if !noLogs {
		store, err = newArtifactStore(artifactsDir)
		if err != nil {
			logger.Warn("artifact store unavailable, suite logs disabled", zap.Error(err))
			store = nil
		}
	}

	opts := suite.Options{
		Stdin:    cmd.InOrStdin(),
		Stdout:   liveOut,
		Stderr:   errOut,
		Prefix:   prefix,
		Listener: &progress{w: liveOut, total: len(ds)},
		Logger:   logger,
	}
	if store != nil {
		opts.LogSink = store
	}

	if srvCfg != nil {
		fmt.Fprintf(liveOut, "Starting server: %s\n", srvCfg.Command)
		srv, err := suite.StartServer(ctx, *srvCfg, liveOut, errOut, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(); err != nil {
				logger.Warn("stop server", zap.Error(err))
			}
		}()
	}

	runner := suite.NewRunner(newExecutor(), opts)
	summary, runErr := runner.Run(ctx, cfg.Name, ds)
	if summary == nil {
		return runErr
	}

	fmt.Fprintln(liveOut)
	if err := report.Write(out, summary, format, report.Options{Color: isTerminal(out)}); err != nil {
		return fatal("write report", err)
	}

	if store != nil {
		if err := store.SaveSummary(summary); err != nil {
			logger.Warn("save run summary", zap.Error(err))
		}
	}
	if !noRecord {
		recordRun(cmd, summary)
	}
	if junitPath != "" {
		if err := report.WriteJUnitFile(junitPath, summary); err != nil {
			return fatal("write junit report", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.AllPassed() {
		return fmt.Errorf("%w: %d of %d", ErrSuitesFailed, summary.Failed, summary.Total())
	}
	return nil
}

// recordRun writes the summary to the history database. A history failure
// never changes the run's outcome.
func recordRun(cmd *cobra.Command, summary *suite.Summary) {
	store, err := openStore(cmd.Context())
	if err != nil {
		logger.Warn("run not recorded", zap.Error(err))
		return
	}
	defer store.Close()
	if err := store.RecordRun(cmd.Context(), summary); err != nil {
		logger.Warn("run not recorded", zap.String("run_id", summary.RunID), zap.Error(err))
		return
	}
	logger.Debug("run recorded", zap.String("run_id", summary.RunID))
}

// progress prints a banner before and a status line after each suite.
type progress struct {
	w     io.Writer
	total int
}

func (p *progress) SuiteStarted(index int, d suite.Descriptor) {
	fmt.Fprintf(p.w, "\n==> [%d/%d] %s: %s\n", index+1, p.total, d.Name, d.CommandLine())
}

func (p *progress) SuiteFinished(index int, r suite.Result) {
	line := fmt.Sprintf("<== [%d/%d] %s %s (%s)", index+1, p.total, r.Descriptor.Name,
		report.Label(r), (time.Duration(r.DurationMs) * time.Millisecond).String())
	if r.Err != "" {
		line += ": " + r.Err
	}
	fmt.Fprintln(p.w, line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func init() {
	runCmd.Flags().String("format", "table", "Summary format: table, text or json")
	runCmd.Flags().String("junit", "", "Also write a JUnit XML report to this file")
	runCmd.Flags().Bool("prefix", false, "Prefix each output line with [Suite Name]")
	runCmd.Flags().Bool("no-record", false, "Do not record the run in the history database")
	runCmd.Flags().Bool("no-logs", false, "Do not write per-suite log files")
	runCmd.Flags().String("artifacts-dir", "", "Directory for run artifacts (default ~/.suiterun/runs)")
}
