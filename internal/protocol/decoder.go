package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/wagiedev/scripthost-go/internal/errors"
)

// Decoder reassembles frames from a byte stream delivered in arbitrary
// chunks. A frame split across any number of chunks is returned once its
// last byte arrives; bytes of an incomplete frame are kept for the next Feed.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf          []byte
	maxFrameSize int
	err          error
}

// NewDecoder creates a decoder rejecting frames larger than maxFrameSize.
// A non-positive maxFrameSize selects DefaultMaxFrameSize.
func NewDecoder(maxFrameSize int) *Decoder {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &Decoder{maxFrameSize: maxFrameSize}
}

// Feed appends chunk to the stream and returns every frame it completed.
//
// After the first error the stream cannot be resynchronized, and every later
// call returns the same error.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}

	d.buf = append(d.buf, chunk...)

	var (
		frames   []Frame
		consumed int
	)

	for {
		rest := d.buf[consumed:]
		if len(rest) < HeaderSize {
			break
		}

		kind := Kind(rest[0])
		if !kind.Valid() {
			d.err = &errors.FrameError{Kind: rest[0], Reason: "unknown frame kind"}

			return frames, d.err
		}

		size := binary.BigEndian.Uint32(rest[1:HeaderSize])
		if uint64(size) > uint64(d.maxFrameSize) {
			d.err = &errors.FrameError{
				Kind:   rest[0],
				Reason: fmt.Sprintf("frame of %d bytes exceeds limit of %d", size, d.maxFrameSize),
			}

			return frames, d.err
		}

		total := HeaderSize + int(size)
		if len(rest) < total {
			// Reserve room for the remainder so a large frame arriving in many
			// small chunks is not reallocated on every Feed.
			if need := consumed + total; cap(d.buf) < need {
				grown := make([]byte, len(d.buf), need)
				copy(grown, d.buf)
				d.buf = grown
			}

			break
		}

		payload := make([]byte, size)
		copy(payload, rest[HeaderSize:total])

		frames = append(frames, Frame{Kind: kind, Payload: payload})
		consumed += total
	}

	if consumed > 0 {
		n := copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:n]
	}

	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Err returns the error that poisoned the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}
