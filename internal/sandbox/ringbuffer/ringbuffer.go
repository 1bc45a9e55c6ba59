// Package ringbuffer implements a bounded, thread-safe byte accumulator
// used to cap memory usage for detached process output (spec §5.3).
package ringbuffer

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// DefaultCapacity is the 1 MiB default cap from spec §5.3.
const DefaultCapacity = 1 << 20

// RingBuffer accumulates bytes up to a fixed capacity. Once full,
// further appends discard the oldest bytes to make room and latch
// Overflowed so callers can surface truncation to the user.
type RingBuffer struct {
	mu         deadlock.Mutex
	data       []byte
	capacity   int
	overflowed bool
}

// New creates a RingBuffer with the given capacity. A capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{capacity: capacity}
}

// Append adds p to the buffer, evicting the oldest bytes if the result
// would exceed capacity. Appending more than the full capacity in one
// call keeps only the trailing capacity bytes of p.
func (b *RingBuffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) > b.capacity {
		b.data = append([]byte(nil), p[len(p)-b.capacity:]...)
		b.overflowed = true
		return
	}

	overflow := len(b.data) + len(p) - b.capacity
	if overflow > 0 {
		b.data = b.data[overflow:]
		b.overflowed = true
	}
	b.data = append(b.data, p...)
}

// Drain returns a copy of everything accumulated so far and clears the
// buffer. Overflowed is left untouched — it reflects the buffer's
// history, not its current contents.
func (b *RingBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.data
	b.data = nil
	return out
}

// Peek returns a copy of everything accumulated so far without
// clearing the buffer.
func (b *RingBuffer) Peek() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]byte(nil), b.data...)
}

// Size reports the number of bytes currently buffered.
func (b *RingBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// Overflowed reports whether any bytes have ever been evicted.
func (b *RingBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.overflowed
}
