package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(tag StreamTag, data string) []byte {
	buf := make([]byte, frameHeaderSize+len(data))
	buf[0] = byte(tag)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(data)))
	copy(buf[frameHeaderSize:], data)
	return buf
}

// chunkedSource splits a byte slice into reads of the given sizes,
// simulating HTTP chunk boundaries that don't line up with frame
// boundaries.
type chunkedSource struct {
	data  []byte
	sizes []int
	pos   int
}

func (c *chunkedSource) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	size := len(c.data) - c.pos
	if len(c.sizes) > 0 {
		size = c.sizes[0]
		c.sizes = c.sizes[1:]
	}
	if size > len(p) {
		size = len(p)
	}
	if c.pos+size > len(c.data) {
		size = len(c.data) - c.pos
	}
	n := copy(p, c.data[c.pos:c.pos+size])
	c.pos += n
	return n, nil
}

func TestFrameDemuxer_WholeStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frame(StreamStdout, "hello "))
	buf.Write(frame(StreamStdout, "world\n"))
	buf.Write(frame(StreamStderr, "oops\n"))

	d := NewFrameDemuxer(bytes.NewReader(buf.Bytes()))

	f1, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, StreamStdout, f1.Stream)
	assert.Equal(t, "hello ", string(f1.Data))

	f2, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "world\n", string(f2.Data))

	f3, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, StreamStderr, f3.Stream)
	assert.Equal(t, "oops\n", string(f3.Data))

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// TestFrameDemuxer_SplitAcrossChunkBoundaries injects chunk splits at every
// byte offset mid-frame and mid-header, and asserts identical output to
// the un-split case — the documented invariant from spec §8.
func TestFrameDemuxer_SplitAcrossChunkBoundaries(t *testing.T) {
	var want bytes.Buffer
	want.Write(frame(StreamStdout, "first payload"))
	want.Write(frame(StreamStderr, "second payload, a bit longer"))
	want.Write(frame(StreamStdout, "third"))
	full := want.Bytes()

	for splitSize := 1; splitSize <= 5; splitSize++ {
		src := &chunkedSource{data: append([]byte(nil), full...), sizes: repeatedSizes(splitSize, len(full))}
		d := NewFrameDemuxer(src)

		var gotStdout, gotStderr bytes.Buffer
		for {
			f, err := d.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			if f.Stream == StreamStdout {
				gotStdout.Write(f.Data)
			} else {
				gotStderr.Write(f.Data)
			}
		}

		assert.Equal(t, "first payloadthird", gotStdout.String(), "split size %d", splitSize)
		assert.Equal(t, "second payload, a bit longer", gotStderr.String(), "split size %d", splitSize)
	}
}

func repeatedSizes(size, total int) []int {
	var sizes []int
	for i := 0; i < total; i += size {
		sizes = append(sizes, size)
	}
	return sizes
}

func TestFrameDemuxer_RawFallthrough(t *testing.T) {
	// Podman without multiplexing: no framing at all, first byte is
	// ordinary program output, not a valid stream tag.
	raw := "plain output with no headers\n"
	d := NewFrameDemuxer(bytes.NewReader([]byte(raw)))

	var got bytes.Buffer
	for {
		f, err := d.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, StreamStdout, f.Stream)
		got.Write(f.Data)
	}
	assert.Equal(t, raw, got.String())
}
