// Package config provides configuration types for the script host manager.
package config

import (
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	// DefaultRunTimeout bounds a single Run when the caller sets no timeout.
	DefaultRunTimeout = 300 * time.Second

	// DefaultStartupTimeout bounds the wait for the host's hello frame.
	DefaultStartupTimeout = 30 * time.Second

	// DefaultTimeoutGrace is how long past a run's timeout the host has to
	// report the timeout itself before the session terminates it.
	DefaultTimeoutGrace = 5 * time.Second

	// DefaultShutdownTimeout is how long a host may take to exit after the
	// quit frame before it is killed.
	DefaultShutdownTimeout = 3 * time.Second

	// DefaultDiagnosticBufferSize caps the retained tail of host stderr.
	DefaultDiagnosticBufferSize = 64 * 1024 // 64KB

	// DefaultTimeoutEnv overrides DefaultRunTimeout, in milliseconds.
	DefaultTimeoutEnv = "SCRIPTHOST_DEFAULT_TIMEOUT_MS"
)

// Options configures the manager and the sessions it spawns.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// DefaultTimeout applies to Run calls without an explicit timeout.
	// If zero, DefaultTimeoutEnv or DefaultRunTimeout is used.
	DefaultTimeout time.Duration

	// StartupTimeout bounds the startup handshake.
	StartupTimeout time.Duration

	// TimeoutGrace is added to a run's timeout before the session gives up
	// on the host and terminates it.
	TimeoutGrace time.Duration

	// ShutdownTimeout bounds a graceful host exit on Close.
	ShutdownTimeout time.Duration

	// Cwd is the startup working directory of spawned hosts.
	// If empty, the current directory is used.
	Cwd string

	// Env provides additional environment variables for host processes.
	Env map[string]string

	// MaxFrameSize bounds a single protocol frame.
	// If zero, protocol.DefaultMaxFrameSize is used.
	MaxFrameSize int

	// DiagnosticBufferSize caps the retained tail of host stderr.
	DiagnosticBufferSize int

	// Stderr is called with every line the host writes to its stderr.
	Stderr func(string)
}

// WithDefaults returns a copy of o with every unset field filled in.
func (o *Options) WithDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}

	if out.Logger == nil {
		out.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if out.DefaultTimeout <= 0 {
		out.DefaultTimeout = defaultTimeoutFromEnv()
	}

	if out.StartupTimeout <= 0 {
		out.StartupTimeout = DefaultStartupTimeout
	}

	if out.TimeoutGrace <= 0 {
		out.TimeoutGrace = DefaultTimeoutGrace
	}

	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = DefaultShutdownTimeout
	}

	if out.DiagnosticBufferSize <= 0 {
		out.DiagnosticBufferSize = DefaultDiagnosticBufferSize
	}

	return &out
}

// defaultTimeoutFromEnv returns the run timeout from the environment or the default.
func defaultTimeoutFromEnv() time.Duration {
	if raw := os.Getenv(DefaultTimeoutEnv); raw != "" {
		if d, err := time.ParseDuration(raw + "ms"); err == nil && d > 0 {
			return d
		}
	}

	return DefaultRunTimeout
}

// Environment returns the host process environment: the current process
// environment with Env applied on top.
func (o *Options) Environment() []string {
	env := os.Environ()
	for k, v := range o.Env {
		env = append(env, k+"="+v)
	}

	return env
}
