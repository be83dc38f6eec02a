package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ScriptHostError is the base interface for all script host errors.
type ScriptHostError interface {
	error
	IsScriptHostError() bool
}

// Compile-time verification that all error types implement ScriptHostError.
var (
	_ ScriptHostError = (*HostNotFoundError)(nil)
	_ ScriptHostError = (*SpawnError)(nil)
	_ ScriptHostError = (*HandshakeError)(nil)
	_ ScriptHostError = (*TransportError)(nil)
	_ ScriptHostError = (*FrameError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrManagerClosed indicates the manager has been shut down.
	ErrManagerClosed = errors.New("manager closed")

	// ErrSessionDead indicates the session lost its host process or pipes.
	ErrSessionDead = errors.New("session is dead")

	// ErrProcessExited indicates the host process exited.
	ErrProcessExited = errors.New("host process exited")

	// ErrStdinClosed indicates the input pipe was closed before a write completed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrHostUnresponsive indicates the host did not answer within the
	// timeout grace period and was terminated.
	ErrHostUnresponsive = errors.New("host unresponsive")

	// ErrEmptyCommandLine indicates Instance was called without a command.
	ErrEmptyCommandLine = errors.New("empty command line")
)

// HostNotFoundError indicates no script host executable was found.
type HostNotFoundError struct {
	SearchedPaths []string
}

func (e *HostNotFoundError) Error() string {
	return fmt.Sprintf("script host not found in: %v", e.SearchedPaths)
}

// IsScriptHostError implements ScriptHostError.
func (e *HostNotFoundError) IsScriptHostError() bool { return true }

// SpawnError indicates the host process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start script host %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsScriptHostError implements ScriptHostError.
func (e *SpawnError) IsScriptHostError() bool { return true }

// HandshakeError indicates the host started but never completed the
// startup handshake. Diagnostics holds whatever the host wrote to stderr.
type HandshakeError struct {
	Diagnostics string
	Err         error
}

func (e *HandshakeError) Error() string {
	diag := strings.TrimSpace(e.Diagnostics)
	if diag == "" {
		return fmt.Sprintf("script host handshake failed: %v", e.Err)
	}

	return fmt.Sprintf("script host handshake failed: %v: %s", e.Err, diag)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsScriptHostError implements ScriptHostError.
func (e *HandshakeError) IsScriptHostError() bool { return true }

// TransportError indicates an I/O failure on the host's pipes or the loss
// of the host process. Op names the operation that observed it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("script host transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsScriptHostError implements ScriptHostError.
func (e *TransportError) IsScriptHostError() bool { return true }

// FrameError indicates the host's output could not be framed or decoded.
type FrameError struct {
	Kind   byte
	Reason string
	Err    error
}

func (e *FrameError) Error() string {
	var msg string
	if e.Kind != 0 {
		msg = fmt.Sprintf("invalid %q frame from script host: %s", e.Kind, e.Reason)
	} else {
		msg = "invalid frame from script host: " + e.Reason
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsScriptHostError implements ScriptHostError.
func (e *FrameError) IsScriptHostError() bool { return true }
