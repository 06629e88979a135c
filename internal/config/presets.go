package config

import (
	"fmt"
	"sort"
)

// builtinPresets maps preset name to suite file YAML. They reproduce the
// suite lists the pet-wellness app's runner scripts used to hard-code.
var builtinPresets = map[string]string{
	"all":           allPreset,
	"master":        masterPreset,
	"notifications": notificationsPreset,
	"week5":         week5Preset,
	"registration":  registrationPreset,
}

const allPreset = `name: all
suites:
  - name: Unit Tests
    npm_script: test:unit
  - name: Integration Tests
    npm_script: test:integration
  - name: Auth Tests
    npm_script: test:e2e:node:auth
  - name: Pet Tests
    npm_script: test:e2e:node:pets
  - name: Python Tests
    npm_script: test:python
`

const masterPreset = `name: master
defaults:
  timeout: 2m
suites:
  - name: Authentication Tests
    npm_script: test:auth
  - name: Notification Model Tests
    npm_script: test:notifications:model
  - name: Notification Service Tests
    npm_script: test:notifications:service
  - name: Notification Routes Tests
    npm_script: test:notifications:routes
  - name: Notification Integration Tests
    npm_script: test:notifications:integration
  - name: Task API Tests
    npm_script: test:tasks:api
  - name: Task Integration Tests
    npm_script: test:tasks:integration
  - name: Calendar Integration Tests
    npm_script: test:calendar:integration
  - name: Main Test Runner
    npm_script: test
  - name: Notification Test Runner
    npm_script: test:notifications
`

const notificationsPreset = `name: notifications
suites:
  - name: Model Tests
    npm_script: test:notifications:model
  - name: Service Tests
    npm_script: test:notifications:service
  - name: Routes Tests
    npm_script: test:notifications:routes
  - name: Integration Tests
    npm_script: test:notifications:integration
`

const week5Preset = `name: week5
suites:
  - name: Week 5 E2E and Accessibility
    exec: [npx, cypress, run, --spec, "cypress/e2e/week5/**/*.cy.js"]
`

const registrationPreset = `name: registration
dir: RegistrationTests
suites:
  - name: Registration
    exec: [node, registration-tests.js]
  - name: Database Constraints
    exec: [node, test-database-constraints.js]
  - name: Edge Cases
    exec: [node, test-edge-cases.js]
  - name: Security
    exec: [node, test-security.js]
`

// Preset parses a built-in suite list. Relative directories resolve against
// the current working directory.
func Preset(name string) (*SuiteFile, error) {
	data, ok := builtinPresets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	cfg, err := Parse([]byte(data), "")
	if err != nil {
		return nil, fmt.Errorf("preset %q: %w", name, err)
	}
	return cfg, nil
}

// PresetNames returns the built-in preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(builtinPresets))
	for name := range builtinPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
