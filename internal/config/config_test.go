package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `
name: pawsome
dir: app
env:
  NODE_ENV: test
defaults:
  timeout: "2m"
server:
  command: "node server.js"
  ready_delay: "5s"
  ready_url: "http://localhost:3000/health"
  env:
    PORT: "3000"
suites:
  - name: Unit Tests
    npm_script: test:unit
  - name: Integration Tests
    command: "npm run test:integration"
    timeout: "5m"
    env:
      NODE_ENV: integration
  - name: Security
    exec: [node, test-security.js]
    dir: /opt/security
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "suites.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Name != "pawsome" {
		t.Errorf("Name = %q, want %q", cfg.Name, "pawsome")
	}
	if len(cfg.Suites) != 3 {
		t.Fatalf("len(Suites) = %d, want 3", len(cfg.Suites))
	}

	wantDir := filepath.Join(filepath.Dir(path), "app")
	if cfg.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, wantDir)
	}

	unit := cfg.Suites[0]
	if unit.Command != "npm run test:unit" {
		t.Errorf("npm_script not expanded: %q", unit.Command)
	}
	if unit.Timeout != "2m" {
		t.Errorf("default timeout not applied: %q", unit.Timeout)
	}
	if unit.Dir != wantDir {
		t.Errorf("suite dir = %q, want %q", unit.Dir, wantDir)
	}
	if unit.Env["NODE_ENV"] != "test" {
		t.Errorf("file env not merged: %v", unit.Env)
	}

	integ := cfg.Suites[1]
	if integ.Timeout != "5m" {
		t.Errorf("explicit timeout overridden: %q", integ.Timeout)
	}
	if integ.Env["NODE_ENV"] != "integration" {
		t.Errorf("suite env should win: %v", integ.Env)
	}

	if cfg.Suites[2].Dir != "/opt/security" {
		t.Errorf("absolute dir rewritten: %q", cfg.Suites[2].Dir)
	}

	if cfg.Server == nil || cfg.Server.Dir != wantDir {
		t.Errorf("server dir not defaulted: %+v", cfg.Server)
	}
	if cfg.Server.Env["PORT"] != "3000" || cfg.Server.Env["NODE_ENV"] != "test" {
		t.Errorf("server env = %v", cfg.Server.Env)
	}

	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}
}

func TestLoadNameFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly.yaml")
	if err := os.WriteFile(path, []byte("suites:\n  - name: Unit\n    command: npm test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Name != "nightly" {
		t.Errorf("Name = %q, want nightly", cfg.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading suite file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestLoadSchemaViolation(t *testing.T) {
	path := writeTestConfig(t, "suites:\n  - name: Unit\n    cmd: npm test\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if _, err := LoadDefault(); err == nil {
		t.Fatal("expected error when no suite file exists")
	}

	if err := os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("name: local\nsuites: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Name != "local" {
		t.Errorf("Name = %q", cfg.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty list is valid", "suites: []\n", ""},
		{"duplicate names", "suites:\n  - {name: Unit, command: a}\n  - {name: Unit, command: b}\n", "duplicate suite name"},
		{"no command", "suites:\n  - name: Unit\n", "one of command, exec or npm_script"},
		{"command and exec", "suites:\n  - {name: Unit, command: a, exec: [b]}\n", "mutually exclusive"},
		{"npm_script and command", "suites:\n  - {name: Unit, command: a, npm_script: test}\n", "mutually exclusive"},
		{"bad ready url", "server:\n  command: node server.js\n  ready_url: localhost:3000\n", "server.ready_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml), "")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			errs := Validate(cfg)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestDescriptors(t *testing.T) {
	cfg, err := Parse([]byte(validConfig), "/repo")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	ds, err := cfg.Descriptors(nil)
	if err != nil {
		t.Fatalf("Descriptors() error: %v", err)
	}
	if len(ds) != 3 {
		t.Fatalf("len = %d", len(ds))
	}
	if ds[0].Name != "Unit Tests" || ds[0].Timeout != 2*time.Minute || ds[0].Dir != "/repo/app" {
		t.Errorf("unexpected descriptor %+v", ds[0])
	}
	if ds[2].Command != "" || strings.Join(ds[2].Exec, " ") != "node test-security.js" {
		t.Errorf("exec form lost: %+v", ds[2])
	}
}

func TestDescriptors_FilterKeepsDeclarationOrder(t *testing.T) {
	cfg, err := Parse([]byte(validConfig), "")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	ds, err := cfg.Descriptors([]string{"Security", "Unit Tests"})
	if err != nil {
		t.Fatalf("Descriptors() error: %v", err)
	}
	if len(ds) != 2 || ds[0].Name != "Unit Tests" || ds[1].Name != "Security" {
		t.Errorf("unexpected order: %+v", ds)
	}

	if _, err := cfg.Descriptors([]string{"Unit Tests", "Lint"}); err == nil || !strings.Contains(err.Error(), "Lint") {
		t.Errorf("expected unknown suite error, got %v", err)
	}
}

func TestServerConfig(t *testing.T) {
	cfg, err := Parse([]byte(validConfig), "/repo")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	srv, err := cfg.ServerConfig()
	if err != nil {
		t.Fatalf("ServerConfig() error: %v", err)
	}
	if srv.Command != "node server.js" || srv.ReadyDelay != 5*time.Second {
		t.Errorf("unexpected server config %+v", srv)
	}
	if strings.Join(srv.Env, ",") != "NODE_ENV=test,PORT=3000" {
		t.Errorf("server env = %v", srv.Env)
	}

	none, err := (&SuiteFile{}).ServerConfig()
	if err != nil || none != nil {
		t.Errorf("expected nil server config, got %+v, %v", none, err)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, err := Preset(name)
			if err != nil {
				t.Fatalf("Preset(%q) error: %v", name, err)
			}
			if errs := Validate(cfg); len(errs) != 0 {
				t.Errorf("preset %q invalid: %v", name, errs)
			}
			if len(cfg.Suites) == 0 {
				t.Errorf("preset %q has no suites", name)
			}
		})
	}

	master, _ := Preset("master")
	if len(master.Suites) != 10 {
		t.Errorf("master preset: %d suites, want 10", len(master.Suites))
	}
	if master.Suites[0].Timeout != "2m" {
		t.Errorf("master preset default timeout not applied")
	}

	if _, err := Preset("nightly"); err == nil {
		t.Error("expected error for unknown preset")
	}
}
