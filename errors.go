package scripthost

import "github.com/wagiedev/scripthost-go/internal/errors"

// Re-export error types from internal package

// ScriptHostError is the base interface for all script host errors.
type ScriptHostError = errors.ScriptHostError

// HostNotFoundError indicates no PowerShell executable was found.
type HostNotFoundError = errors.HostNotFoundError

// SpawnError indicates the host process could not be started.
type SpawnError = errors.SpawnError

// HandshakeError indicates the host never completed its startup handshake.
type HandshakeError = errors.HandshakeError

// TransportError indicates a failure of the host's pipes or process.
type TransportError = errors.TransportError

// FrameError indicates the host's output could not be decoded.
type FrameError = errors.FrameError

// Re-export sentinel errors from internal package.
var (
	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.ErrManagerClosed

	// ErrSessionDead indicates the session was closed.
	ErrSessionDead = errors.ErrSessionDead

	// ErrProcessExited indicates the host process exited.
	ErrProcessExited = errors.ErrProcessExited

	// ErrHostUnresponsive indicates a host was killed for not answering in time.
	ErrHostUnresponsive = errors.ErrHostUnresponsive

	// ErrEmptyCommandLine indicates Instance was called without a command.
	ErrEmptyCommandLine = errors.ErrEmptyCommandLine
)
