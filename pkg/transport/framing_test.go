package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	r := NewFrameReader(&buf)

	payloads := [][]byte{
		[]byte{0x01},
		[]byte("hello"),
		bytes.Repeat([]byte{0xab}, 4096),
	}
	for _, p := range payloads {
		require.NoError(t, w.WriteFrame(p))
	}
	for _, p := range payloads {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	// Nothing left.
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	w := NewFrameWriter(&bytes.Buffer{})
	assert.ErrorIs(t, w.WriteFrame(nil), ErrMessageEmpty)
	assert.ErrorIs(t, w.WriteFrame([]byte{}), ErrMessageEmpty)
}

func TestWriteFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	err := w.WriteFrame(make([]byte, DefaultMaxMessageSize+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Zero(t, buf.Len())
}

func TestReadFrameRejectsBadPrefix(t *testing.T) {
	t.Run("zero length", func(t *testing.T) {
		var prefix [LengthPrefixSize]byte
		r := NewFrameReader(bytes.NewReader(prefix[:]))
		_, err := r.ReadFrame()
		assert.ErrorIs(t, err, ErrMessageEmpty)
	})

	t.Run("oversized length", func(t *testing.T) {
		var prefix [LengthPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], DefaultMaxMessageSize+1)
		r := NewFrameReader(bytes.NewReader(prefix[:]))
		_, err := r.ReadFrame()
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})
}

func TestReadFrameTruncated(t *testing.T) {
	t.Run("partial prefix", func(t *testing.T) {
		r := NewFrameReader(bytes.NewReader([]byte{0x00, 0x00}))
		_, err := r.ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTruncated)
	})

	t.Run("partial payload", func(t *testing.T) {
		var buf bytes.Buffer
		var prefix [LengthPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], 10)
		buf.Write(prefix[:])
		buf.Write([]byte("short"))

		r := NewFrameReader(&buf)
		_, err := r.ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTruncated)
	})
}

func TestReaderMaxSizeOverride(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	require.NoError(t, w.WriteFrame(make([]byte, 128)))

	r := NewFrameReader(&buf)
	r.SetMaxMessageSize(64)
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
