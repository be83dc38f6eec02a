package session

import "time"

type runConfig struct {
	timeout    time.Duration
	workingDir string
}

// RunOption configures a single Run call.
type RunOption func(*runConfig)

// WithTimeout bounds the run. Non-positive values select the session default.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithWorkingDirectory runs the script in dir. The override applies to this
// call only; later calls start in the host's startup directory again.
func WithWorkingDirectory(dir string) RunOption {
	return func(c *runConfig) {
		c.workingDir = dir
	}
}
