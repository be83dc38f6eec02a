// Package registry keeps one script host session per command line.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wagiedev/scripthost-go/internal/config"
	"github.com/wagiedev/scripthost-go/internal/errors"
	"github.com/wagiedev/scripthost-go/internal/session"
)

// SpawnFunc starts a session for argv under key.
type SpawnFunc func(ctx context.Context, key string, argv []string, opts *config.Options) (*session.Session, error)

// Registry maps command-line keys to live sessions.
//
// Lookups for a key that has no live session spawn one. Concurrent lookups
// of the same key share a single spawn, and spawning never holds the map
// lock, so lookups of other keys proceed meanwhile.
type Registry struct {
	log   *slog.Logger
	opts  *config.Options
	spawn SpawnFunc
	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   bool
}

// New creates an empty registry. A nil spawn selects session.Start.
func New(opts *config.Options, spawn SpawnFunc) *Registry {
	opts = opts.WithDefaults()

	if spawn == nil {
		spawn = session.Start
	}

	return &Registry{
		log:      opts.Logger.With("component", "registry"),
		opts:     opts,
		spawn:    spawn,
		sessions: make(map[string]*session.Session),
	}
}

// Instance returns the live session for argv, starting one if needed.
func (r *Registry) Instance(ctx context.Context, argv []string) (*session.Session, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.ErrEmptyCommandLine
	}

	key := CommandLine(argv)

	if s, err := r.lookup(key); s != nil || err != nil {
		return s, err
	}

	ch := r.group.DoChan(key, func() (any, error) {
		// A spawn that finished between lookup and DoChan is already cached.
		if s, err := r.lookup(key); s != nil || err != nil {
			return s, err
		}

		r.log.Debug("spawning script host", "key", key)

		// The session outlives the lookup that triggered it, and other
		// callers may be waiting on this spawn, so cancellation is detached.
		s, err := r.spawn(context.WithoutCancel(ctx), key, argv, r.opts)
		if err != nil {
			r.log.Error("script host spawn failed", "key", key, "error", err)

			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		if r.closed {
			go s.Close() //nolint:errcheck // registry already shut down

			return nil, errors.ErrManagerClosed
		}

		r.sessions[key] = s

		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*session.Session), nil //nolint:forcetypeassert // only sessions are stored
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup returns the cached live session for key. A dead session is removed
// and closed so the caller spawns a replacement.
func (r *Registry) lookup(key string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.ErrManagerClosed
	}

	s, ok := r.sessions[key]
	if !ok {
		return nil, nil
	}

	if s.Alive() {
		return s, nil
	}

	r.log.Info("evicting dead session", "key", key, "session_id", s.ID(), "pid", s.Pid())
	delete(r.sessions, key)

	go s.Close() //nolint:errcheck // dead session, nothing to report

	return nil, nil
}

// Evict removes the session for argv and closes it. It reports whether a
// session was cached.
func (r *Registry) Evict(argv []string) bool {
	key := CommandLine(argv)

	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		if err := s.Close(); err != nil {
			r.log.Warn("close evicted session", "key", key, "error", err)
		}
	}

	return ok
}

// Len returns the number of cached sessions, live or not yet evicted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close shuts down every session concurrently. Later Instance calls fail
// with ErrManagerClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return nil
	}

	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	r.log.Info("closing sessions", "count", len(sessions))

	var g errgroup.Group

	for _, s := range sessions {
		g.Go(s.Close)
	}

	return g.Wait()
}

// CommandLine renders argv as a single command line. It is the registry
// key: elements containing whitespace or quotes are double-quoted, with
// embedded quotes and backslashes escaped.
func CommandLine(argv []string) string {
	parts := make([]string, len(argv))

	for i, arg := range argv {
		if arg != "" && !strings.ContainsAny(arg, " \t\r\n\"'") {
			parts[i] = arg

			continue
		}

		var b strings.Builder

		b.WriteByte('"')

		for _, c := range arg {
			if c == '"' || c == '\\' {
				b.WriteByte('\\')
			}

			b.WriteRune(c)
		}

		b.WriteByte('"')
		parts[i] = b.String()
	}

	return strings.Join(parts, " ")
}
