package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File holds the parsed scripthost YAML configuration used by the command.
// All fields are optional; zero values represent defaults.
//
//	host: /usr/bin/pwsh
//	args: ["-NoLogo"]            # replaces the bootstrap arguments when set
//	timeout: 2m
//	startup_timeout: 45s
//	cwd: /srv/scripts
//	env:
//	  DOTNET_CLI_TELEMETRY_OPTOUT: "1"
type File struct {
	Host              string            `yaml:"host"`
	Args              []string          `yaml:"args"`
	RawTimeout        string            `yaml:"timeout"`         // e.g. "5m", "30s"
	RawStartupTimeout string            `yaml:"startup_timeout"` // e.g. "30s"
	Cwd               string            `yaml:"cwd"`
	Env               map[string]string `yaml:"env"`
}

// Load reads and validates a config file. A missing path yields an empty File.
func Load(path string) (*File, error) {
	f := &File{}
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	return f, nil
}

// Validate checks the duration fields.
func (f *File) Validate() error {
	for name, raw := range map[string]string{
		"timeout":         f.RawTimeout,
		"startup_timeout": f.RawStartupTimeout,
	} {
		if raw == "" {
			continue
		}

		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		if d <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", name, raw)
		}
	}

	return nil
}

// Timeout returns the configured run timeout, or zero for the default.
func (f *File) Timeout() time.Duration {
	d, _ := time.ParseDuration(f.RawTimeout)

	return d
}

// StartupTimeout returns the configured handshake timeout, or zero for the default.
func (f *File) StartupTimeout() time.Duration {
	d, _ := time.ParseDuration(f.RawStartupTimeout)

	return d
}

// Apply copies the file settings onto o. Fields already set on o win.
func (f *File) Apply(o *Options) {
	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = f.Timeout()
	}

	if o.StartupTimeout == 0 {
		o.StartupTimeout = f.StartupTimeout()
	}

	if o.Cwd == "" {
		o.Cwd = f.Cwd
	}

	if len(f.Env) > 0 {
		env := make(map[string]string, len(f.Env)+len(o.Env))
		for k, v := range f.Env {
			env[k] = v
		}

		for k, v := range o.Env {
			env[k] = v
		}

		o.Env = env
	}
}
