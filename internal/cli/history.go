package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/suiterun/internal/db"
	"github.com/lucasnoah/suiterun/internal/report"
	"github.com/lucasnoah/suiterun/internal/suite"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-36s %-16s %-19s %-6s %-6s %-7s %s\n",
			"RUN ID", "NAME", "STARTED", "PASSED", "FAILED", "RATE", "DURATION")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 110))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-16s %-19s %-6d %-6d %-7s %s\n",
				r.RunID, r.Name, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Passed, r.Failed, fmt.Sprintf("%.1f%%", r.SuccessRate()),
				fmt.Sprintf("%dms", r.DurationMs))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the summary of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		formatFlag, _ := cmd.Flags().GetString("format")
		logSuite, _ := cmd.Flags().GetString("log")
		artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		summary, err := lookupRun(cmd, runID, artifactsDir)
		if err != nil {
			return err
		}

		if logSuite != "" {
			return printSuiteLog(cmd, summary, logSuite, artifactsDir)
		}
		return report.Write(cmd.OutOrStdout(), summary, format, report.Options{})
	},
}

// lookupRun finds a run in the history database, falling back to the
// artifact store for runs made with --no-record.
func lookupRun(cmd *cobra.Command, runID, artifactsDir string) (*suite.Summary, error) {
	store, err := openStore(cmd.Context())
	if err == nil {
		defer store.Close()
		var summary *suite.Summary
		if summary, err = store.GetRun(cmd.Context(), runID); err == nil {
			return summary, nil
		}
	}
	dbErr := err

	arts, err := newArtifactStore(artifactsDir)
	if err != nil {
		return nil, dbErr
	}
	summary, err := arts.GetSummary(runID)
	if err != nil {
		if errors.Is(dbErr, db.ErrNotFound) {
			return nil, dbErr
		}
		return nil, errors.Join(dbErr, err)
	}
	return summary, nil
}

func printSuiteLog(cmd *cobra.Command, summary *suite.Summary, name, artifactsDir string) error {
	for i, r := range summary.Results {
		if r.Descriptor.Name != name {
			continue
		}
		arts, err := newArtifactStore(artifactsDir)
		if err != nil {
			return err
		}
		log, err := arts.ReadSuiteLog(summary.RunID, i, name)
		if err != nil {
			return fmt.Errorf("read log for %q: %w", name, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), log)
		return nil
	}
	return fmt.Errorf("run %s has no suite %q", summary.RunID, name)
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")

	showCmd.Flags().String("format", "text", "Summary format: table, text or json")
	showCmd.Flags().String("log", "", "Print the captured log of this suite instead")
	showCmd.Flags().String("artifacts-dir", "", "Directory for run artifacts (default ~/.suiterun/runs)")
}
