package scripthost

import (
	"context"

	"github.com/wagiedev/scripthost-go/internal/protocol"
	"github.com/wagiedev/scripthost-go/internal/registry"
	"github.com/wagiedev/scripthost-go/internal/session"
)

// Session is a live script host bound to one command line.
type Session = session.Session

// Result is the outcome of a Run call.
type Result = protocol.Result

// Manager owns the sessions started for each distinct host command line.
// A Manager is safe for concurrent use.
type Manager struct {
	options  *Options
	registry *registry.Registry
}

// New creates a Manager. Close releases every host it started.
func New(opts ...Option) *Manager {
	options := applyOptions(opts).WithDefaults()

	return &Manager{
		options:  options,
		registry: registry.New(options, nil),
	}
}

// Instance returns the live session for the command line, starting the host
// when none exists or the previous one died. Concurrent calls for the same
// command line start at most one host.
func (m *Manager) Instance(ctx context.Context, command string, args ...string) (*Session, error) {
	return m.registry.Instance(ctx, append([]string{command}, args...))
}

// Run runs script on the session for argv, starting it when needed.
func (m *Manager) Run(ctx context.Context, argv []string, script string, opts ...RunOption) (*Result, error) {
	s, err := m.registry.Instance(ctx, argv)
	if err != nil {
		return nil, err
	}

	return s.Run(ctx, script, opts...), nil
}

// Evict closes and forgets the session for the command line, if any.
func (m *Manager) Evict(command string, args ...string) bool {
	return m.registry.Evict(append([]string{command}, args...))
}

// Len returns the number of cached sessions.
func (m *Manager) Len() int {
	return m.registry.Len()
}

// Close shuts down every session. Instance fails with ErrManagerClosed
// afterwards.
func (m *Manager) Close() error {
	return m.registry.Close()
}

// CommandLine returns the key a Manager uses for a command line.
func CommandLine(command string, args ...string) string {
	return registry.CommandLine(append([]string{command}, args...))
}
