package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lucasnoah/suiterun/internal/suite"
)

// Descriptors converts the file's suites into runner descriptors, keeping
// declaration order. When names is non-empty only the named suites are
// returned, still in declaration order; an unknown name is an error.
func (f *SuiteFile) Descriptors(names []string) ([]suite.Descriptor, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var ds []suite.Descriptor
	for _, s := range f.Suites {
		if len(want) > 0 && !want[s.Name] {
			continue
		}
		delete(want, s.Name)

		timeout, err := parseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("suite %q: %w", s.Name, err)
		}
		ds = append(ds, suite.Descriptor{
			Name:    s.Name,
			Command: s.Command,
			Exec:    s.Exec,
			Dir:     s.Dir,
			Env:     s.Env,
			Timeout: timeout,
		})
	}

	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown suite(s): %s", strings.Join(missing, ", "))
	}
	return ds, nil
}

// ServerConfig converts the server block, or returns nil when there is none.
func (f *SuiteFile) ServerConfig() (*suite.ServerConfig, error) {
	if f.Server == nil {
		return nil, nil
	}
	srv := f.Server
	cfg := &suite.ServerConfig{
		Command:  srv.Command,
		Dir:      srv.Dir,
		ReadyURL: srv.ReadyURL,
	}
	var err error
	if cfg.ReadyDelay, err = parseDuration(srv.ReadyDelay); err != nil {
		return nil, fmt.Errorf("server.ready_delay: %w", err)
	}
	if cfg.ReadyTimeout, err = parseDuration(srv.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("server.ready_timeout: %w", err)
	}
	if cfg.StopGrace, err = parseDuration(srv.StopGrace); err != nil {
		return nil, fmt.Errorf("server.stop_grace: %w", err)
	}
	keys := make([]string, 0, len(srv.Env))
	for k := range srv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg.Env = append(cfg.Env, k+"="+srv.Env[k])
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
