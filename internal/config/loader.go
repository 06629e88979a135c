package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/suiterun/internal/schema"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the suite file looked up in the working directory.
const DefaultFileName = "suites.yaml"

// Load reads, schema-checks and parses a suite file from the given path.
// Relative directories in the file resolve against the file's own directory.
func Load(path string) (*SuiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving suite file path: %w", err)
	}

	cfg, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}

// Parse schema-checks and decodes suite file content. baseDir anchors
// relative directories; an empty baseDir leaves them as written.
func Parse(data []byte, baseDir string) (*SuiteFile, error) {
	if err := schema.ValidateSuiteFile(data); err != nil {
		return nil, err
	}

	var cfg SuiteFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing suite YAML: %w", err)
	}

	applyDefaults(&cfg, baseDir)
	return &cfg, nil
}

// LoadDefault searches for a suite file in standard locations and loads the
// first one found. Search order: ./suites.yaml, ~/.suiterun/config.yaml
func LoadDefault() (*SuiteFile, error) {
	candidates := []string{DefaultFileName}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".suiterun", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no suite file found (searched: %v); use --config or --preset", candidates)
}

// applyDefaults resolves working directories, merges file-level environment
// into each suite, expands npm_script shorthands and fills default timeouts.
func applyDefaults(cfg *SuiteFile, baseDir string) {
	cfg.Dir = resolveDir(baseDir, cfg.Dir)

	for i := range cfg.Suites {
		s := &cfg.Suites[i]

		if s.NpmScript != "" && s.Command == "" && len(s.Exec) == 0 {
			s.Command = "npm run " + s.NpmScript
		}

		if s.Dir == "" {
			s.Dir = cfg.Dir
		} else {
			s.Dir = resolveDir(cfg.Dir, s.Dir)
		}

		s.Env = mergeEnv(cfg.Env, s.Env)

		if s.Timeout == "" {
			s.Timeout = cfg.Defaults.Timeout
		}
	}

	if cfg.Server != nil {
		if cfg.Server.Dir == "" {
			cfg.Server.Dir = cfg.Dir
		} else {
			cfg.Server.Dir = resolveDir(cfg.Dir, cfg.Server.Dir)
		}
		cfg.Server.Env = mergeEnv(cfg.Env, cfg.Server.Env)
	}
}

func resolveDir(base, dir string) string {
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) || base == "" {
		return dir
	}
	return filepath.Join(base, dir)
}

// mergeEnv returns base overlaid with override; override wins.
func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
