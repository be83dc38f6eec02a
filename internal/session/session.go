package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wagiedev/scripthost-go/internal/config"
	"github.com/wagiedev/scripthost-go/internal/errors"
	"github.com/wagiedev/scripthost-go/internal/protocol"
	"github.com/wagiedev/scripthost-go/internal/subprocess"
)

// Transport is the byte-level connection to a host process.
type Transport interface {
	Start(ctx context.Context) error
	Chunks() <-chan []byte
	ReadErr() error
	Done() <-chan struct{}
	ExitErr() error
	Pid() int
	Diagnostics() string
	Write(ctx context.Context, data []byte) error
	CloseStdin() error
	Kill() error
	Wait(ctx context.Context) error
}

// Compile-time check that ProcessTransport implements Transport.
var _ Transport = (*subprocess.ProcessTransport)(nil)

// Session is a live script host bound to one command-line key.
type Session struct {
	log       *slog.Logger
	id        string
	key       string
	opts      *config.Options
	transport Transport
	decoder   *protocol.Decoder
	pending   []protocol.Frame // Decoded frames not yet consumed by a response
	hello     protocol.Hello

	mu      sync.Mutex // Serializes Run and the exit watcher
	alive   atomic.Bool
	closing atomic.Bool

	deadMu sync.Mutex
	dead   *protocol.Result

	closeOnce sync.Once
	closeErr  error
}

// Start spawns argv as a script host and waits for its hello frame.
func Start(ctx context.Context, key string, argv []string, opts *config.Options) (*Session, error) {
	opts = opts.WithDefaults()

	return New(ctx, key, subprocess.NewProcessTransport(opts.Logger, argv, opts), opts)
}

// New starts a session over an unstarted transport.
func New(ctx context.Context, key string, transport Transport, opts *config.Options) (*Session, error) {
	opts = opts.WithDefaults()
	id := uuid.NewString()

	s := &Session{
		log:       opts.Logger.With("component", "session", "session_id", id),
		id:        id,
		key:       key,
		opts:      opts,
		transport: transport,
		decoder:   protocol.NewDecoder(opts.MaxFrameSize),
	}

	if err := transport.Start(ctx); err != nil {
		return nil, err
	}

	if err := s.handshake(ctx); err != nil {
		_ = transport.Kill()

		return nil, err
	}

	s.alive.Store(true)

	go s.watch()

	s.log.Info("script host ready",
		"key", key,
		"pid", s.hello.Pid,
		"cwd", s.hello.Cwd,
		"version", s.hello.Version,
	)

	return s, nil
}

func (s *Session) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StartupTimeout)
	defer cancel()

	for len(s.pending) == 0 {
		select {
		case chunk, ok := <-s.transport.Chunks():
			if !ok {
				return s.handshakeError(classify("handshake", s.exitCause()))
			}

			frames, err := s.decoder.Feed(chunk)
			if err != nil {
				return s.handshakeError(err)
			}

			s.pending = append(s.pending, frames...)

		case <-ctx.Done():
			return &errors.HandshakeError{Diagnostics: s.transport.Diagnostics(), Err: ctx.Err()}
		}
	}

	f := s.pending[0]
	s.pending = s.pending[1:]

	if f.Kind != protocol.KindHello {
		return s.handshakeError(&errors.FrameError{Kind: byte(f.Kind), Reason: "expected hello frame"})
	}

	if err := f.DecodeJSON(&s.hello); err != nil {
		return s.handshakeError(err)
	}

	return nil
}

func (s *Session) handshakeError(err error) error {
	_ = s.transport.Kill()

	select {
	case <-s.transport.Done():
	case <-time.After(diagnosticsWait):
	}

	return &errors.HandshakeError{Diagnostics: s.transport.Diagnostics(), Err: err}
}

// exitCause reports why stdout ended: the process exit status when the
// process is gone, otherwise the read error.
func (s *Session) exitCause() error {
	select {
	case <-s.transport.Done():
		if err := s.transport.ExitErr(); err != nil {
			return err
		}

		return errors.ErrProcessExited
	case <-time.After(exitWait):
		return s.transport.ReadErr()
	}
}

// Run executes script on the host and returns its Result.
//
// Run never returns an error: host failures are reported through the
// Result's ErrorMessage, and transport failures through a Result with exit
// code -1 that the session repeats for every later call.
func (s *Session) Run(ctx context.Context, script string, opts ...RunOption) *protocol.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res := s.deadResult(); res != nil {
		return res
	}

	if err := ctx.Err(); err != nil {
		return &protocol.Result{ExitCode: 1, ErrorMessage: "Catastrophic failure: " + err.Error()}
	}

	cfg := runConfig{timeout: s.opts.DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout <= 0 {
		cfg.timeout = s.opts.DefaultTimeout
	}

	req := &protocol.Request{
		ID:        protocol.NewRequestID(),
		Script:    script,
		TimeoutMS: cfg.timeout.Milliseconds(),
	}

	if cfg.workingDir != "" {
		req.WorkingDir = filepath.FromSlash(cfg.workingDir)
	}

	log := s.log.With("request_id", req.ID)
	log.Debug("running script", "timeout", cfg.timeout, "working_dir", req.WorkingDir)

	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return &protocol.Result{ExitCode: 1, ErrorMessage: "Catastrophic failure: " + err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout+s.opts.TimeoutGrace)
	defer cancel()

	asm := protocol.NewAssembler(req.ID)

	if err := s.transport.Write(runCtx, data); err != nil {
		if runCtx.Err() != nil {
			return s.abort(ctx, asm, cfg.timeout)
		}

		return s.fail("write", err)
	}

	for {
		for len(s.pending) > 0 {
			f := s.pending[0]
			s.pending = s.pending[1:]

			done, err := asm.Add(f)
			if err != nil {
				return s.corrupt(asm, err)
			}

			if done {
				res := asm.Result()
				log.Debug("script finished", "exitcode", res.ExitCode)

				return res
			}
		}

		select {
		case chunk, ok := <-s.transport.Chunks():
			if !ok {
				return s.fail("read", s.exitCause())
			}

			frames, err := s.decoder.Feed(chunk)
			s.pending = append(s.pending, frames...)

			if err != nil {
				// Consume what decoded cleanly so partial output survives.
				for _, f := range s.pending {
					if _, addErr := asm.Add(f); addErr != nil {
						break
					}
				}

				s.pending = nil

				return s.corrupt(asm, err)
			}

		case <-runCtx.Done():
			return s.abort(ctx, asm, cfg.timeout)
		}
	}
}

// abort terminates a host that did not answer in time.
func (s *Session) abort(ctx context.Context, asm *protocol.Assembler, timeout time.Duration) *protocol.Result {
	msg := protocol.TimeoutMessage(timeout) + "; host terminated"
	if err := ctx.Err(); err != nil {
		msg = fmt.Sprintf("Catastrophic failure: %v; host terminated", err)
	}

	s.log.Warn("script host unresponsive, terminating", "timeout", timeout, "grace", s.opts.TimeoutGrace)

	_ = s.transport.Kill()
	s.markDead(&errors.TransportError{Op: "run", Err: errors.ErrHostUnresponsive})

	res := asm.Result()
	res.ExitCode = 1
	res.ErrorMessage = msg

	return res
}

// corrupt terminates a host whose output stream cannot be decoded.
func (s *Session) corrupt(asm *protocol.Assembler, err error) *protocol.Result {
	s.log.Error("script host sent an invalid response, terminating", "error", err)

	_ = s.transport.Kill()
	s.markDead(&errors.TransportError{Op: "decode", Err: err})

	res := asm.Result()
	res.ExitCode = 1
	res.ErrorMessage = "Catastrophic failure: " + err.Error()

	return res
}

// Close asks the host to quit, then kills it if it has not exited within
// the shutdown timeout. A Run in progress fails with a transport Result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.markDead(&errors.TransportError{Op: "run", Err: errors.ErrSessionDead})

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		if err := s.transport.Write(ctx, protocol.EncodeQuit()); err != nil {
			s.log.Debug("quit frame not delivered", "error", err)
		}

		_ = s.transport.CloseStdin()

		if err := s.transport.Wait(ctx); err != nil {
			s.log.Debug("script host did not exit in time, killing", "error", err)
			s.closeErr = s.transport.Kill()
		}

		s.log.Info("script host closed", "pid", s.hello.Pid)
	})

	return s.closeErr
}

// ID returns the session's unique instance ID.
func (s *Session) ID() string { return s.id }

// Key returns the command-line key the session was started for.
func (s *Session) Key() string { return s.key }

// Pid returns the host's process ID as reported by its handshake.
func (s *Session) Pid() int { return s.hello.Pid }

// StartupDir returns the host's working directory at startup.
func (s *Session) StartupDir() string { return s.hello.Cwd }

// HostVersion returns the version string reported by the host.
func (s *Session) HostVersion() string { return s.hello.Version }

// Alive reports whether the session can still run scripts. Once false it
// stays false.
func (s *Session) Alive() bool { return s.alive.Load() }
