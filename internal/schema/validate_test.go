package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSuiteFile_Valid(t *testing.T) {
	data := []byte(`
name: notifications
dir: ..
env:
  NODE_ENV: test
  PORT: 3000
defaults:
  timeout: 2m
server:
  command: node server.js
  ready_delay: 5s
  ready_url: http://localhost:3000/health
suites:
  - name: Model Tests
    npm_script: test:notifications:model
  - name: Routes Tests
    command: npm run test:notifications:routes
    timeout: 90s
  - name: Security
    exec: [node, test-security.js]
`)
	require.NoError(t, ValidateSuiteFile(data))
}

func TestValidateSuiteFile_Empty(t *testing.T) {
	assert.NoError(t, ValidateSuiteFile([]byte("")))
	assert.NoError(t, ValidateSuiteFile([]byte("suites: []\n")))
}

func TestValidateSuiteFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown top-level key":  "suitez: []\n",
		"suite without name":     "suites:\n  - command: npm test\n",
		"bad duration":           "suites:\n  - name: Unit\n    command: npm test\n    timeout: two minutes\n",
		"exec not a list":        "suites:\n  - name: Unit\n    exec: npm test\n",
		"server without command": "server:\n  ready_delay: 5s\n",
		"suites not a list":      "suites: npm test\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateSuiteFile([]byte(data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "suite file validation failed")
		})
	}
}

func TestValidateSuiteFile_BadYAML(t *testing.T) {
	err := ValidateSuiteFile([]byte("suites: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}
