package engine

import (
	"strings"
	"sync"
)

// DefaultOutputLimit bounds the in-memory output kept per run.
const DefaultOutputLimit = 4 << 20

// outputBuffer keeps the most recent lines of a run within a byte budget.
// Evicted lines only advance head; the backing slice is compacted once more
// than half of it is dead, so Append stays amortized constant time.
type outputBuffer struct {
	mu    sync.Mutex
	lines []string
	head  int
	size  int
	limit int
}

func newOutputBuffer(limit int) *outputBuffer {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &outputBuffer{limit: limit}
}

// Append stores line, evicting the oldest lines once the budget is exceeded.
// The newest line is always kept.
func (b *outputBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	b.size += len(line) + 1
	for b.size > b.limit && b.head < len(b.lines)-1 {
		b.size -= len(b.lines[b.head]) + 1
		b.lines[b.head] = ""
		b.head++
	}
	if b.head > 0 && b.head >= len(b.lines)/2 {
		n := copy(b.lines, b.lines[b.head:])
		clear(b.lines[n:])
		b.lines = b.lines[:n]
		b.head = 0
	}
}

// Len returns the number of buffered lines.
func (b *outputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines) - b.head
}

// Lines returns a copy of the buffered lines.
func (b *outputBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines[b.head:]...)
}

// String renders the buffer as newline separated text.
func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == b.head {
		return ""
	}
	return strings.Join(b.lines[b.head:], "\n") + "\n"
}

// Reset discards all lines.
func (b *outputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.head = 0
	b.size = 0
}
