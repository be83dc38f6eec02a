package protocol

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Request asks the host to run one script.
//
// Wire format (payload of an 'X' frame):
//
//	{
//	  "id": "01J9Z3...",
//	  "script": "write-output foo; exit 55",
//	  "timeout_ms": 300000,
//	  "working_dir": "C:\\temp"
//	}
type Request struct {
	ID         string `json:"id"`
	Script     string `json:"script"`
	TimeoutMS  int64  `json:"timeout_ms"` //nolint:tagliatelle // host protocol uses snake_case
	WorkingDir string `json:"working_dir,omitempty"` //nolint:tagliatelle // host protocol uses snake_case
}

// Hello is the host's startup handshake ('H' frame).
type Hello struct {
	Pid     int    `json:"pid"`
	Cwd     string `json:"cwd"`
	Version string `json:"version,omitempty"`
}

// StreamRecord is a diagnostic stream message ('S' frame).
type StreamRecord struct {
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// Status ends a response ('R' frame).
type Status struct {
	ID           string `json:"id"`
	ExitCode     int    `json:"exitcode"`
	ErrorMessage string `json:"errormessage,omitempty"`
}

// Result is the outcome of running one script.
//
// Stdout and Stderr are independent of ExitCode: a script may write error
// records and still exit 0. ErrorMessage is reserved for failures of the
// host itself (timeouts, a missing working directory, an undecodable
// response) and is never set for ordinary script errors. Empty strings mean
// the field is absent.
type Result struct {
	Stdout       string `json:"stdout,omitempty"`
	Stderr       string `json:"stderr,omitempty"`
	ExitCode     int    `json:"exitcode"`
	ErrorMessage string `json:"errormessage,omitempty"`
}

// NewRequestID creates a unique request ID using ULID.
func NewRequestID() string {
	return ulid.Make().String()
}

// TimeoutMessage is the error message reported when a script exceeds its timeout.
func TimeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("Catastrophic failure: script host timeout (%d ms) exceeded while executing", timeout.Milliseconds())
}

// MissingDirectoryMessage is the error message reported when a working
// directory override does not exist.
func MissingDirectoryMessage(dir string) string {
	return "Working directory specified does not exist: " + dir
}
