package protocol

import (
	"fmt"
	"strings"

	"github.com/wagiedev/scripthost-go/internal/errors"
	"github.com/wagiedev/scripthost-go/internal/errrecord"
)

// streamPrefixes maps diagnostic streams to the line prefix used when they
// are folded into standard output.
var streamPrefixes = map[string]string{
	"verbose":     "VERBOSE: ",
	"debug":       "DEBUG: ",
	"warning":     "WARNING: ",
	"information": "",
}

// Assembler builds a Result from the frames of a single response.
type Assembler struct {
	id     string
	stdout strings.Builder
	stderr strings.Builder
	status *Status
}

// NewAssembler creates an assembler for the response to request id.
func NewAssembler(id string) *Assembler {
	return &Assembler{id: id}
}

// Add consumes one frame. It returns true once the status frame has been
// seen, after which Result is complete.
func (a *Assembler) Add(f Frame) (bool, error) {
	if a.status != nil {
		return true, &errors.FrameError{Kind: byte(f.Kind), Reason: "frame after end of response"}
	}

	switch f.Kind {
	case KindOutput:
		a.stdout.Write(f.Payload)

	case KindStream:
		var rec StreamRecord
		if err := f.DecodeJSON(&rec); err != nil {
			return false, err
		}

		a.stdout.WriteString(foldStream(&rec))

	case KindError:
		var rec errrecord.Record
		if err := f.DecodeJSON(&rec); err != nil {
			return false, err
		}

		a.stderr.WriteString(rec.Format())
		a.stderr.WriteByte('\n')

	case KindStatus:
		var st Status
		if err := f.DecodeJSON(&st); err != nil {
			return false, err
		}

		if st.ID != a.id {
			return false, &errors.FrameError{
				Kind:   byte(f.Kind),
				Reason: fmt.Sprintf("status for request %q while waiting for %q", st.ID, a.id),
			}
		}

		a.status = &st

		return true, nil

	default:
		return false, &errors.FrameError{Kind: byte(f.Kind), Reason: "unexpected frame in response"}
	}

	return false, nil
}

// Done reports whether the status frame has been seen.
func (a *Assembler) Done() bool {
	return a.status != nil
}

// Result returns the assembled result. Before the status frame arrives the
// exit code is zero and ErrorMessage is empty.
func (a *Assembler) Result() *Result {
	res := &Result{
		Stdout: a.stdout.String(),
		Stderr: a.stderr.String(),
	}

	if a.status != nil {
		res.ExitCode = a.status.ExitCode
		res.ErrorMessage = a.status.ErrorMessage
	}

	return res
}

func foldStream(rec *StreamRecord) string {
	prefix, ok := streamPrefixes[strings.ToLower(rec.Stream)]
	if !ok {
		prefix = strings.ToUpper(rec.Stream) + ": "
	}

	text := prefix + rec.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	return text
}
