package session

import (
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/wagiedev/scripthost-go/internal/errors"
	"github.com/wagiedev/scripthost-go/internal/protocol"
)

// diagnosticsWait bounds how long a failing session waits for the host's
// stderr to drain before reporting it.
const diagnosticsWait = 2 * time.Second

// exitWait bounds how long a closed stdout waits for the process exit status.
const exitWait = 500 * time.Millisecond

// classify wraps a pipe or process failure observed during op. Process exits
// always wrap ErrProcessExited so callers can match them with errors.Is.
func classify(op string, err error) *errors.TransportError {
	if err == nil {
		return &errors.TransportError{Op: op, Err: errors.ErrProcessExited}
	}

	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		return &errors.TransportError{
			Op:  op,
			Err: fmt.Errorf("%w: %s", errors.ErrProcessExited, exitErr.ProcessState),
		}
	}

	return &errors.TransportError{Op: op, Err: err}
}

// watch marks the session dead once the host process exits. A Run in flight
// records its own cause first, including for hosts it killed itself.
func (s *Session) watch() {
	<-s.transport.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() || s.deadResult() != nil {
		return
	}

	res := s.markDead(classify("wait", s.transport.ExitErr()))
	s.log.Error("script host exited", "stderr", res.Stderr)
}

// fail terminates the host after a transport failure during op and returns
// the session's dead Result.
func (s *Session) fail(op string, err error) *protocol.Result {
	_ = s.transport.Kill()

	select {
	case <-s.transport.Done():
	case <-time.After(diagnosticsWait):
	}

	res := s.markDead(classify(op, err))
	s.log.Error("script host transport failure", "op", op, "error", err)

	return res
}

// markDead flips the session dead. The first failure recorded wins, so every
// later Run observes the identical Result.
func (s *Session) markDead(terr *errors.TransportError) *protocol.Result {
	s.alive.Store(false)

	s.deadMu.Lock()
	defer s.deadMu.Unlock()

	if s.dead == nil {
		stderr := terr.Error()
		if diag := strings.TrimSpace(s.transport.Diagnostics()); diag != "" {
			stderr += "\n" + diag
		}

		s.dead = &protocol.Result{Stderr: stderr, ExitCode: -1}
	}

	res := *s.dead

	return &res
}

func (s *Session) deadResult() *protocol.Result {
	s.deadMu.Lock()
	defer s.deadMu.Unlock()

	if s.dead == nil {
		return nil
	}

	res := *s.dead

	return &res
}
