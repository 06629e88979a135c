// Package suite runs an ordered list of test suites as child processes,
// strictly one at a time, and tallies their outcomes.
package suite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Descriptor is the static definition of one suite.
// Exactly one of Command (run through the shell) or Exec (argv, no shell) is set.
type Descriptor struct {
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Exec    []string          `json:"exec,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// CommandLine returns a printable form of the invocation.
func (d Descriptor) CommandLine() string {
	if len(d.Exec) > 0 {
		return strings.Join(d.Exec, " ")
	}
	return d.Command
}

// environ flattens Env into KEY=VALUE pairs in key order.
func (d Descriptor) environ() []string {
	if len(d.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+d.Env[k])
	}
	return env
}

// ValidateDescriptors reports every structural problem in a suite list.
// An empty list is valid.
func ValidateDescriptors(ds []Descriptor) error {
	var errs []error
	seen := make(map[string]int)
	for i, d := range ds {
		label := fmt.Sprintf("suite[%d]", i)
		if d.Name != "" {
			label = fmt.Sprintf("suite[%d] %q", i, d.Name)
		}

		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else if prev, dup := seen[d.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate name (first declared at suite[%d])", label, prev))
		} else {
			seen[d.Name] = i
		}

		hasCommand := strings.TrimSpace(d.Command) != ""
		hasExec := len(d.Exec) > 0
		switch {
		case hasCommand && hasExec:
			errs = append(errs, fmt.Errorf("%s: command and exec are mutually exclusive", label))
		case !hasCommand && !hasExec:
			errs = append(errs, fmt.Errorf("%s: command is required", label))
		case hasExec && strings.TrimSpace(d.Exec[0]) == "":
			errs = append(errs, fmt.Errorf("%s: exec[0] must name a program", label))
		}

		if d.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s: timeout must not be negative", label))
		}
	}
	return errors.Join(errs...)
}
