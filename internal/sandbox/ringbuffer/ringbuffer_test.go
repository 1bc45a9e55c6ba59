package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_BasicAppendDrain(t *testing.T) {
	b := New(1024)
	b.Append([]byte("hello "))
	b.Append([]byte("world"))

	assert.Equal(t, 11, b.Size())
	assert.False(t, b.Overflowed())
	assert.Equal(t, "hello world", string(b.Peek()))

	drained := b.Drain()
	require.Equal(t, "hello world", string(drained))
	assert.Equal(t, 0, b.Size())
}

func TestRingBuffer_OverflowEvictsOldest(t *testing.T) {
	b := New(8)
	b.Append([]byte("abcdefgh"))
	assert.False(t, b.Overflowed())

	b.Append([]byte("ij"))
	assert.True(t, b.Overflowed())
	assert.Equal(t, "cdefghij", string(b.Peek()))
}

func TestRingBuffer_SingleAppendLargerThanCapacity(t *testing.T) {
	b := New(4)
	b.Append([]byte("abcdefghij"))

	assert.True(t, b.Overflowed())
	assert.Equal(t, "ghij", string(b.Peek()))
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	b := New(0)
	assert.Equal(t, DefaultCapacity, b.capacity)
}
