// Package vision runs the frame capture loop: it acquires frames from the
// monitored surface, sends them to the vision provider together with the
// model's own recent outputs, and parses the structured observation out of
// the free-text response.
package vision

import "sync"

// ContextBuffer provides a fixed-size insertion-ordered buffer of raw
// provider responses. It is the model's short-term memory: the most recent
// entries are surfaced verbatim as prior context in the next provider call.
// When full, the oldest entry is evicted.
type ContextBuffer struct {
	mu      sync.RWMutex
	entries []string
	size    int
}

// DefaultBufferSize captures enough history for the prior-context window
// without letting stale observations linger.
const DefaultBufferSize = 10

// PriorContextWindow is how many recent entries feed the next provider call.
const PriorContextWindow = 3

// NewContextBuffer creates a buffer with the specified capacity.
func NewContextBuffer(size int) *ContextBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ContextBuffer{size: size}
}

// Push appends a raw response, evicting the oldest entry when full.
func (b *ContextBuffer) Push(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, raw)
	if len(b.entries) > b.size {
		b.entries = b.entries[len(b.entries)-b.size:]
	}
}

// Recent returns up to n of the newest entries, oldest first.
func (b *ContextBuffer) Recent(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || len(b.entries) == 0 {
		return nil
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]string, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Len returns the number of buffered entries.
func (b *ContextBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Reset clears the buffer.
func (b *ContextBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Capacity returns the maximum number of entries the buffer holds.
func (b *ContextBuffer) Capacity() int {
	return b.size
}
