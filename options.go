package scripthost

import (
	"log/slog"
	"time"

	"github.com/wagiedev/scripthost-go/internal/config"
	"github.com/wagiedev/scripthost-go/internal/session"
)

// Options configures a Manager and the sessions it starts.
type Options = config.Options

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Manager Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDefaultTimeout sets the timeout for Run calls that do not pass
// WithTimeout. The default is 300 seconds, or SCRIPTHOST_DEFAULT_TIMEOUT_MS
// when set.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DefaultTimeout = d
	}
}

// WithStartupTimeout bounds the wait for a new host's handshake.
func WithStartupTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.StartupTimeout = d
	}
}

// WithTimeoutGrace sets how long past a run's timeout the host may take to
// report the timeout itself before it is killed.
func WithTimeoutGrace(d time.Duration) Option {
	return func(o *Options) {
		o.TimeoutGrace = d
	}
}

// WithShutdownTimeout bounds a graceful host exit on Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}

// WithCwd sets the startup working directory of host processes.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv adds environment variables to host processes.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithMaxFrameSize bounds a single protocol frame from the host.
func WithMaxFrameSize(n int) Option {
	return func(o *Options) {
		o.MaxFrameSize = n
	}
}

// WithDiagnosticBufferSize caps the retained tail of host stderr.
func WithDiagnosticBufferSize(n int) Option {
	return func(o *Options) {
		o.DiagnosticBufferSize = n
	}
}

// WithStderr sets a callback receiving every line hosts write to stderr.
func WithStderr(fn func(string)) Option {
	return func(o *Options) {
		o.Stderr = fn
	}
}

// WithConfigOptions replaces the accumulated options with a copy of opts.
// Options given after it still apply.
func WithConfigOptions(opts *Options) Option {
	return func(o *Options) {
		if opts != nil {
			*o = *opts
		}
	}
}

// ===== Run Configuration =====

// RunOption configures a single Run call.
type RunOption = session.RunOption

// WithTimeout bounds a single Run call.
func WithTimeout(d time.Duration) RunOption {
	return session.WithTimeout(d)
}

// WithWorkingDirectory runs a single script in dir. Forward slashes are
// accepted on every platform.
func WithWorkingDirectory(dir string) RunOption {
	return session.WithWorkingDirectory(dir)
}
