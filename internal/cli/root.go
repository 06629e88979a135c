package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/suiterun/internal/exitcodes"
	"github.com/lucasnoah/suiterun/internal/logging"
	"github.com/lucasnoah/suiterun/internal/suite"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

// ErrSuitesFailed is returned by run when at least one suite did not pass.
var ErrSuitesFailed = errors.New("suites failed")

var (
	configFile string
	presetName string
	verbose    bool
	dbDSN      string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "suiterun",
	Short: "Run test suites one at a time and report the results",
	Long: `suiterun executes an ordered list of test suites as child processes,
strictly one after another, and prints a pass/fail summary. The exit code is
0 when every suite passed, 1 when any failed and 2 when the runner itself
could not proceed.

Suites come from --config FILE, a built-in --preset, ./suites.yaml or
~/.suiterun/config.yaml. Run history is kept in ~/.suiterun/ (SQLite) or
in PostgreSQL when --db is a postgres:// URL.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.Is(err, ErrSuitesFailed):
		return exitcodes.SuiteFailure
	default:
		return exitcodes.RuntimeErr
	}
}

// resolveDSN picks the history database: --db, then $SUITERUN_DB, then the
// default SQLite file.
func resolveDSN() string {
	if dbDSN != "" {
		return dbDSN
	}
	return os.Getenv("SUITERUN_DB")
}

func fatal(op string, err error) error {
	var fe *suite.FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &suite.FatalError{Op: op, Err: err}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "", "path to suite file")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "built-in suite list (see 'list --presets')")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "history database: SQLite path or postgres:// URL (default $SUITERUN_DB or ~/.suiterun/suiterun.db)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
