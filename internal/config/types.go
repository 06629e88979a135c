package config

// SuiteFile is the top-level structure parsed from a suite YAML file.
type SuiteFile struct {
	Name     string            `yaml:"name"`
	Dir      string            `yaml:"dir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Defaults Defaults          `yaml:"defaults,omitempty"`
	Server   *Server           `yaml:"server,omitempty"`
	Suites   []Suite           `yaml:"suites"`
}

// Defaults holds values applied to suites that don't set their own.
type Defaults struct {
	Timeout string `yaml:"timeout,omitempty"`
}

// Server is a background process started before the first suite and
// stopped after the last one.
type Server struct {
	Command      string            `yaml:"command"`
	Dir          string            `yaml:"dir,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	ReadyDelay   string            `yaml:"ready_delay,omitempty"`
	ReadyURL     string            `yaml:"ready_url,omitempty"`
	ReadyTimeout string            `yaml:"ready_timeout,omitempty"`
	StopGrace    string            `yaml:"stop_grace,omitempty"`
}

// Suite is one named test command. Exactly one of Command, Exec or
// NpmScript is set; the loader turns NpmScript into Command.
type Suite struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command,omitempty"`
	Exec      []string          `yaml:"exec,omitempty"`
	NpmScript string            `yaml:"npm_script,omitempty"`
	Dir       string            `yaml:"dir,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty"`
}
