package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/devdock/internal/engine"
)

// Mux fans in events from multiple sources and delivers them via a bounded
// channel. Status and system events are always delivered. When downstream
// consumers cannot keep up, log events are dropped and a synthesized warning
// event surfaces the number of discarded lines per process.
type Mux struct {
	out chan engine.Event

	mu     sync.Mutex
	drops  map[string]int
	inputs sync.WaitGroup
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan engine.Event, size),
		drops: make(map[string]int),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan engine.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes events until the
// source channel is closed.
func (m *Mux) Add(source <-chan engine.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			evt = normalize(evt)
			if evt.Type == engine.EventTypeLog {
				m.deliver(evt)
				continue
			}
			m.flushPending(evt.Process)
			m.blockingSend(evt)
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop
// metadata, and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt engine.Event) {
	if !m.flushPending(evt.Process) {
		m.recordDrops(evt.Process, 1)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrops(evt.Process, 1)
}

func (m *Mux) flushPending(process string) bool {
	count := m.takeDrops(process)
	if count == 0 {
		return true
	}
	if m.trySend(synthesizeDropEvent(process, count)) {
		return true
	}
	m.recordDrops(process, count)
	return false
}

func (m *Mux) takeDrops(process string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.drops[process]
	delete(m.drops, process)
	return count
}

func (m *Mux) recordDrops(process string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[process] += count
}

func (m *Mux) flushDrops() {
	for process, count := range m.collectDrops() {
		m.blockingSend(synthesizeDropEvent(process, count))
	}
}

func (m *Mux) collectDrops() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.drops) == 0 {
		return nil
	}
	pending := m.drops
	m.drops = make(map[string]int)
	return pending
}

func (m *Mux) trySend(evt engine.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func (m *Mux) blockingSend(evt engine.Event) {
	m.out <- evt
}

func normalize(evt engine.Event) engine.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Type != engine.EventTypeLog {
		return evt
	}
	if evt.Source == "" {
		evt.Source = engine.SourceStdout
	}
	if evt.Level == "" {
		if evt.Source == engine.SourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}

func synthesizeDropEvent(process string, count int) engine.Event {
	return engine.Event{
		Timestamp: time.Now(),
		Process:   process,
		Type:      engine.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    engine.SourceSystem,
	}
}
