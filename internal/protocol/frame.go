package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/scripthost-go/internal/errors"
)

const (
	// HeaderSize is the size of a frame header: one kind byte followed by a
	// big-endian uint32 payload length.
	HeaderSize = 5

	// DefaultMaxFrameSize bounds a single frame's payload. A length above it
	// means the stream is corrupt rather than that the host produced that
	// much output.
	DefaultMaxFrameSize = 256 * 1024 * 1024 // 256MB
)

// Kind identifies the channel a frame belongs to.
type Kind byte

const (
	// KindExecute carries a Request to the host.
	KindExecute Kind = 'X'
	// KindQuit asks the host to exit.
	KindQuit Kind = 'Q'
	// KindHello is the host's startup handshake.
	KindHello Kind = 'H'
	// KindOutput carries raw standard output text.
	KindOutput Kind = 'O'
	// KindStream carries a verbose, debug, warning or information record.
	KindStream Kind = 'S'
	// KindError carries an error record.
	KindError Kind = 'E'
	// KindStatus ends a response with the exit status.
	KindStatus Kind = 'R'
)

// Valid reports whether k is a known frame kind.
func (k Kind) Valid() bool {
	switch k {
	case KindExecute, KindQuit, KindHello, KindOutput, KindStream, KindError, KindStatus:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(rune(k))
}

// Frame is one decoded unit of the wire protocol.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// AppendFrame appends the encoding of a frame to dst.
func AppendFrame(dst []byte, kind Kind, payload []byte) []byte {
	var header [HeaderSize]byte

	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	dst = append(dst, header[:]...)

	return append(dst, payload...)
}

// EncodeJSON encodes v as the payload of a frame of the given kind.
func EncodeJSON(kind Kind, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", kind, err)
	}

	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), kind, payload), nil
}

// EncodeRequest encodes an execute frame.
func EncodeRequest(req *Request) ([]byte, error) {
	return EncodeJSON(KindExecute, req)
}

// EncodeQuit encodes a quit frame.
func EncodeQuit() []byte {
	return AppendFrame(nil, KindQuit, nil)
}

// DecodeJSON unmarshals the frame payload into v.
func (f Frame) DecodeJSON(v any) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return &errors.FrameError{Kind: byte(f.Kind), Reason: "decode payload", Err: err}
	}

	return nil
}
