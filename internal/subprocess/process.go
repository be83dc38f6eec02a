package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/scripthost-go/internal/config"
	"github.com/wagiedev/scripthost-go/internal/errors"
)

const (
	// readBufferSize is the size of a single read from the host's stdout.
	readBufferSize = 32 * 1024 // 32KB
	// chunkQueueSize is how many unconsumed stdout chunks may be queued
	// before the stdout reader waits for the session.
	chunkQueueSize = 64
	// stderrLineLimit bounds a single stderr line handed to the logger.
	stderrLineLimit = 64 * 1024 // 64KB
	// writeExitWait is how long a cancelled write may take to unblock after
	// stdin is closed.
	writeExitWait = 1 * time.Second
)

// ProcessTransport spawns a script host and owns its three standard pipes.
//
// It knows nothing about the protocol: stdout is delivered as raw chunks on
// Chunks, stderr is kept as a bounded diagnostic tail, and stdin accepts raw
// writes. Both output pipes are drained from the moment the process starts,
// so the host never blocks on a full pipe while a request is being written.
type ProcessTransport struct {
	log            *slog.Logger
	argv           []string
	env            []string
	cwd            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string)
	diag           *tailBuffer

	chunks chan []byte
	done   chan struct{}
	quit   chan struct{}

	mu          sync.Mutex // Protects stdin writes and the flags below
	closing     bool       // Whether Kill() has been called (intentional shutdown)
	stdinClosed bool       // Whether stdin was closed

	errMu   sync.Mutex
	readErr error // Why stdout stopped; set before chunks is closed
	exitErr error // Result of cmd.Wait; set before done is closed

	quitOnce sync.Once
}

// NewProcessTransport creates a transport that will run argv[0] with the
// remaining elements as arguments.
func NewProcessTransport(log *slog.Logger, argv []string, opts *config.Options) *ProcessTransport {
	opts = opts.WithDefaults()

	return &ProcessTransport{
		log:            log.With("component", "process_transport"),
		argv:           argv,
		env:            opts.Environment(),
		cwd:            opts.Cwd,
		stderrCallback: opts.Stderr,
		diag:           newTailBuffer(opts.DiagnosticBufferSize),
		chunks:         make(chan []byte, chunkQueueSize),
		done:           make(chan struct{}),
		quit:           make(chan struct{}),
	}
}

// Start spawns the host process and begins draining its output pipes.
//
// The process is deliberately not bound to ctx: a session outlives the
// call that created it. ctx only guards the spawn itself.
func (t *ProcessTransport) Start(ctx context.Context) error {
	if len(t.argv) == 0 {
		return &errors.SpawnError{Err: errors.ErrEmptyCommandLine}
	}

	if err := ctx.Err(); err != nil {
		return &errors.SpawnError{Command: t.argv[0], Err: err}
	}

	t.log.Info("Starting script host", "command", t.argv[0])

	//nolint:gosec // G204: Subprocess launching with caller-supplied args is the purpose of this package
	cmd := exec.Command(t.argv[0], t.argv[1:]...)
	cmd.Env = t.env

	if t.cwd != "" {
		cmd.Dir = t.cwd
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.SpawnError{Command: t.argv[0], Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.SpawnError{Command: t.argv[0], Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.SpawnError{Command: t.argv[0], Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start script host", "error", err)

		return &errors.SpawnError{Command: t.argv[0], Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr

	var readers sync.WaitGroup

	readers.Go(t.readStdout)
	readers.Go(t.readStderr)

	go func() {
		// All reads must complete before Wait.
		// See: https://pkg.go.dev/os/exec#Cmd.StdoutPipe
		readers.Wait()

		err := cmd.Wait()

		t.errMu.Lock()
		t.exitErr = err
		t.errMu.Unlock()

		t.mu.Lock()
		closing := t.closing
		t.mu.Unlock()

		switch {
		case closing:
			t.log.Debug("Script host terminated during shutdown")
		case err != nil:
			t.log.Warn("Script host exited", "error", err, "diagnostics", t.Diagnostics())
		default:
			t.log.Info("Script host exited")
		}

		close(t.done)
	}()

	t.log.Info("Script host started", "pid", cmd.Process.Pid)

	return nil
}

// readStdout forwards raw stdout chunks until the pipe closes.
func (t *ProcessTransport) readStdout() {
	defer close(t.chunks)

	buf := make([]byte, readBufferSize)

	for {
		n, err := t.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case t.chunks <- chunk:
			case <-t.quit:
				t.setReadErr(errors.ErrProcessExited)

				return
			}
		}

		if err != nil {
			t.log.Debug("Stdout reader stopped", "error", err)
			t.setReadErr(err)

			return
		}
	}
}

// readStderr keeps the tail of stderr for diagnostics and hands each line
// to the logger and the optional callback.
func (t *ProcessTransport) readStderr() {
	r := bufio.NewReaderSize(t.stderr, stderrLineLimit)

	for {
		line, err := r.ReadSlice('\n')
		if len(line) > 0 {
			t.diag.Write(line)

			text := strings.TrimRight(string(line), "\r\n")
			t.log.Debug("Script host stderr", "line", text)

			if t.stderrCallback != nil {
				t.stderrCallback(text)
			}
		}

		if err != nil {
			if stderrors.Is(err, bufio.ErrBufferFull) {
				continue
			}

			return
		}
	}
}

func (t *ProcessTransport) setReadErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	if t.readErr == nil {
		t.readErr = err
	}
}

// Chunks returns the stdout byte stream as raw chunks. The channel is closed
// when stdout reaches EOF or fails; ReadErr then reports why.
func (t *ProcessTransport) Chunks() <-chan []byte {
	return t.chunks
}

// ReadErr returns the error that ended the stdout stream (io.EOF when the
// host closed it). Only meaningful after Chunks is closed.
func (t *ProcessTransport) ReadErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	return t.readErr
}

// Done returns a channel that is closed once the process has been reaped.
func (t *ProcessTransport) Done() <-chan struct{} {
	return t.done
}

// ExitErr returns the result of waiting for the process. Only meaningful
// after Done is closed.
func (t *ProcessTransport) ExitErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	return t.exitErr
}

// Pid returns the host process id, or 0 before Start.
func (t *ProcessTransport) Pid() int {
	if t.cmd == nil || t.cmd.Process == nil {
		return 0
	}

	return t.cmd.Process.Pid
}

// Diagnostics returns the retained tail of the host's stderr.
func (t *ProcessTransport) Diagnostics() string {
	return t.diag.String()
}

// Write sends raw bytes to the host's stdin.
//
// This method is safe for concurrent use and respects context cancellation
// even during blocking writes. If ctx is cancelled during a blocked write,
// stdin is closed to unblock it and later calls return ErrStdinClosed.
func (t *ProcessTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrStdinClosed
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Writing to script host", "data_len", len(data))

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Debug("Failed to write to script host", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		_ = t.stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(writeExitWait):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// CloseStdin closes the input pipe, signalling end of input to the host.
func (t *ProcessTransport) CloseStdin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		t.stdinClosed = true

		return t.stdin.Close()
	}

	return nil
}

// Kill terminates the host process. It's safe to call Kill multiple times
// or on an already-terminated process.
func (t *ProcessTransport) Kill() error {
	t.mu.Lock()
	t.closing = true

	if t.stdin != nil && !t.stdinClosed {
		_ = t.stdin.Close()
		t.stdinClosed = true
	}

	t.mu.Unlock()

	t.quitOnce.Do(func() { close(t.quit) })

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	select {
	case <-t.done:
		return nil
	default:
	}

	t.log.Debug("Killing script host", "pid", t.cmd.Process.Pid)

	if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill script host (pid %d): %w", t.cmd.Process.Pid, err)
	}

	return nil
}

// Wait blocks until the process has been reaped or ctx is done.
func (t *ProcessTransport) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
