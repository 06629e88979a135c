package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a suite file.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a SuiteFile for semantic errors the schema cannot express.
// It returns a slice of all validation errors found (empty if valid).
// An empty suite list is valid.
func Validate(cfg *SuiteFile) []ValidationError {
	var errs []ValidationError

	validateDuration("defaults.timeout", cfg.Defaults.Timeout, &errs)

	seen := make(map[string]int)
	for i, s := range cfg.Suites {
		prefix := fmt.Sprintf("suites[%d]", i)

		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: "is required"})
		} else if first, dup := seen[name]; dup {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate suite name %q (first declared at suites[%d])", name, first),
			})
		} else {
			seen[name] = i
		}

		forms := 0
		if strings.TrimSpace(s.Command) != "" {
			forms++
		}
		if len(s.Exec) > 0 {
			forms++
		}
		if s.NpmScript != "" && s.Command != "npm run "+s.NpmScript {
			forms++
		}
		switch {
		case forms == 0:
			errs = append(errs, ValidationError{Field: prefix, Message: "one of command, exec or npm_script is required"})
		case forms > 1:
			errs = append(errs, ValidationError{Field: prefix, Message: "command, exec and npm_script are mutually exclusive"})
		}
		if len(s.Exec) > 0 && strings.TrimSpace(s.Exec[0]) == "" {
			errs = append(errs, ValidationError{Field: prefix + ".exec[0]", Message: "must name a program"})
		}

		validateDuration(prefix+".timeout", s.Timeout, &errs)
	}

	if srv := cfg.Server; srv != nil {
		if strings.TrimSpace(srv.Command) == "" {
			errs = append(errs, ValidationError{Field: "server.command", Message: "is required"})
		}
		validateDuration("server.ready_delay", srv.ReadyDelay, &errs)
		validateDuration("server.ready_timeout", srv.ReadyTimeout, &errs)
		validateDuration("server.stop_grace", srv.StopGrace, &errs)
		if srv.ReadyURL != "" {
			u, err := url.Parse(srv.ReadyURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, ValidationError{
					Field:   "server.ready_url",
					Message: fmt.Sprintf("must be an http(s) URL, got %q", srv.ReadyURL),
				})
			}
		}
	}

	return errs
}

func validateDuration(field, value string, errs *[]ValidationError) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", value)})
		return
	}
	if d < 0 {
		*errs = append(*errs, ValidationError{Field: field, Message: "must not be negative"})
	}
}
