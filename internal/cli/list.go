package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/suiterun/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the suites that run would execute",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		showPresets, _ := cmd.Flags().GetBool("presets")
		if showPresets {
			fmt.Fprintf(w, "%-14s %-6s %s\n", "PRESET", "SUITES", "NAME")
			fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
			for _, name := range config.PresetNames() {
				cfg, err := config.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-14s %-6d %s\n", name, len(cfg.Suites), cfg.Name)
			}
			return nil
		}

		cfg, err := loadSuiteFile()
		if err != nil {
			return err
		}
		ds, err := cfg.Descriptors(args)
		if err != nil {
			return err
		}
		if len(ds) == 0 {
			fmt.Fprintln(w, "No suites defined.")
			return nil
		}

		fmt.Fprintf(w, "%-3s %-32s %-8s %s\n", "#", "SUITE", "TIMEOUT", "COMMAND")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
		for i, d := range ds {
			timeout := "-"
			if d.Timeout > 0 {
				timeout = d.Timeout.String()
			}
			fmt.Fprintf(w, "%-3d %-32s %-8s %s\n", i+1, d.Name, timeout, d.CommandLine())
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("presets", false, "List the built-in presets instead")
}
