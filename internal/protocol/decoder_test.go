package protocol

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/scripthost-go/internal/errors"
)

// splitEvery splits data into chunks of n bytes, the last one possibly shorter.
func splitEvery(data []byte, n int) [][]byte {
	var chunks [][]byte

	for len(data) > n {
		chunks = append(chunks, data[:n])
		data = data[n:]
	}

	if len(data) > 0 {
		chunks = append(chunks, data)
	}

	return chunks
}

func feedAll(t *testing.T, dec *Decoder, chunks [][]byte) []Frame {
	t.Helper()

	var frames []Frame

	for _, chunk := range chunks {
		got, err := dec.Feed(chunk)
		require.NoError(t, err)

		frames = append(frames, got...)
	}

	return frames
}

// TestDecoder_MultipleFramesInOneChunk tests decoding several frames delivered
// in a single read.
func TestDecoder_MultipleFramesInOneChunk(t *testing.T) {
	var stream []byte

	stream = AppendFrame(stream, KindOutput, []byte("foo\n"))
	stream = AppendFrame(stream, KindOutput, []byte("bar\n"))
	stream = AppendFrame(stream, KindStatus, []byte(`{"id":"1","exitcode":0}`))

	frames := feedAll(t, NewDecoder(0), [][]byte{stream})

	require.Len(t, frames, 3)
	require.Equal(t, KindOutput, frames[0].Kind)
	require.Equal(t, "foo\n", string(frames[0].Payload))
	require.Equal(t, "bar\n", string(frames[1].Payload))
	require.Equal(t, KindStatus, frames[2].Kind)
}

// TestDecoder_SplitAcrossReads tests frames split at every possible boundary,
// including inside the header.
func TestDecoder_SplitAcrossReads(t *testing.T) {
	var stream []byte

	stream = AppendFrame(stream, KindOutput, []byte("hello world\n"))
	stream = AppendFrame(stream, KindError, []byte(`{"category":"write","message":"oops"}`))
	stream = AppendFrame(stream, KindStatus, []byte(`{"id":"x","exitcode":3}`))

	for size := 1; size <= len(stream); size++ {
		dec := NewDecoder(0)
		frames := feedAll(t, dec, splitEvery(stream, size))

		require.Len(t, frames, 3, "chunk size %d", size)
		require.Equal(t, "hello world\n", string(frames[0].Payload), "chunk size %d", size)
		require.Equal(t, KindStatus, frames[2].Kind, "chunk size %d", size)
		require.Zero(t, dec.Buffered(), "chunk size %d", size)
	}
}

// TestDecoder_PartialFrameIsRetained tests that an incomplete frame stays
// buffered until its remainder arrives.
func TestDecoder_PartialFrameIsRetained(t *testing.T) {
	stream := AppendFrame(nil, KindOutput, []byte("abcdef"))
	dec := NewDecoder(0)

	frames, err := dec.Feed(stream[:7])
	require.NoError(t, err)
	require.Empty(t, frames)
	require.Equal(t, 7, dec.Buffered())

	frames, err = dec.Feed(stream[7:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "abcdef", string(frames[0].Payload))
}

// TestDecoder_LargePayloads tests payloads well beyond an OS pipe buffer.
func TestDecoder_LargePayloads(t *testing.T) {
	sizes := []int{64 * 1024, 96*1024 + 1, 4 * 1024 * 1024}

	for _, size := range sizes {
		payload := bytes.Repeat([]byte{'a'}, size)
		stream := AppendFrame(nil, KindOutput, payload)

		// 4093 is deliberately not a power of two so headers straddle chunks.
		frames := feedAll(t, NewDecoder(0), splitEvery(stream, 4093))

		require.Len(t, frames, 1)
		require.Len(t, frames[0].Payload, size)
		require.True(t, bytes.Equal(payload, frames[0].Payload))
	}
}

// TestDecoder_PayloadIsNotAliased tests that returned payloads survive
// later feeds reusing the internal buffer.
func TestDecoder_PayloadIsNotAliased(t *testing.T) {
	dec := NewDecoder(0)

	first, err := dec.Feed(AppendFrame(nil, KindOutput, []byte("first")))
	require.NoError(t, err)

	_, err = dec.Feed(AppendFrame(nil, KindOutput, []byte("XXXXX")))
	require.NoError(t, err)

	require.Equal(t, "first", string(first[0].Payload))
}

func TestDecoder_UnknownKind(t *testing.T) {
	dec := NewDecoder(0)

	_, err := dec.Feed([]byte("Zjunk on stdout"))
	require.Error(t, err)

	frameErr, ok := stderrors.AsType[*errors.FrameError](err)
	require.True(t, ok)
	require.Equal(t, byte('Z'), frameErr.Kind)

	// The decoder stays poisoned.
	_, err = dec.Feed(AppendFrame(nil, KindOutput, []byte("ok")))
	require.ErrorIs(t, err, dec.Err())
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	dec := NewDecoder(16)

	_, err := dec.Feed(AppendFrame(nil, KindOutput, []byte(strings.Repeat("x", 17))))
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds limit of 16")
}

func TestDecoder_ReturnsFramesBeforeError(t *testing.T) {
	stream := AppendFrame(nil, KindOutput, []byte("good"))
	stream = append(stream, '?', 0, 0, 0, 0)

	frames, err := NewDecoder(0).Feed(stream)
	require.Error(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "good", string(frames[0].Payload))
}

func TestEncodeRequest_RoundTrip(t *testing.T) {
	req := &Request{
		ID:         NewRequestID(),
		Script:     "write-output 'a\nb'",
		TimeoutMS:  1500,
		WorkingDir: "/tmp",
	}

	data, err := EncodeRequest(req)
	require.NoError(t, err)
	require.Equal(t, byte(KindExecute), data[0])

	frames, err := NewDecoder(0).Feed(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	var got Request
	require.NoError(t, frames[0].DecodeJSON(&got))
	require.Equal(t, *req, got)
}

func TestEncodeQuit(t *testing.T) {
	require.Equal(t, []byte{'Q', 0, 0, 0, 0}, EncodeQuit())
}
