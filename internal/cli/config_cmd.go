package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/suiterun/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and inspect suite files",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the suite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSuiteFile()
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			cmd.Printf("Suite file is valid (%d suites).\n", len(cfg.Suites))
			return nil
		}

		cmd.Println("Validation errors:")
		for _, e := range errs {
			cmd.Printf("  - %s\n", e)
		}
		cmd.SilenceUsage = true
		return fmt.Errorf("suite file has %d validation error(s)", len(errs))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved suite file with defaults merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSuiteFile()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling suite file: %w", err)
		}

		cmd.Print(string(data))
		return nil
	},
}

// loadSuiteFile resolves the suite list from --config, --preset or the
// default locations, in that order.
func loadSuiteFile() (*config.SuiteFile, error) {
	switch {
	case configFile != "" && presetName != "":
		return nil, errors.New("--config and --preset are mutually exclusive")
	case configFile != "":
		return config.Load(configFile)
	case presetName != "":
		return config.Preset(presetName)
	}
	return config.LoadDefault()
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
