package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Paintersrp/devdock/internal/logfile"
)

// maxLineBytes splits output lines longer than this into several lines.
const maxLineBytes = 64 << 10

// lineSink receives the output lines of a run. *logfile.Sink implements it.
type lineSink interface {
	WriteLine(line string) error
	Path() string
}

// pump drains one output stream of a run line by line. Every line lands in
// the output buffer, is appended to the sink while it is open and is
// published as a log event. A failed write is reported each time and never
// stops the pump. Log events that cannot be delivered are counted and
// reported as a drop notice.
func (s *Supervisor) pump(r io.Reader, source string, sink lineSink, buf *outputBuffer) {
	reader := bufio.NewReaderSize(r, maxLineBytes)
	dropped := 0
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			line := strings.TrimRight(string(chunk), "\r\n")
			buf.Append(line)
			if sink != nil {
				if werr := sink.WriteLine(line); werr != nil && !errors.Is(werr, logfile.ErrSinkClosed) {
					s.logSystem(slog.LevelError, "", "log file write failed, line kept in memory only",
						fmt.Errorf("%w %s: %w", ErrLogSinkWrite, sink.Path(), werr))
				}
			}
			dropped = s.publish(s.logEvent(line, source), dropped)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			break
		}
	}
	if dropped > 0 {
		s.send(s.dropEvent(dropped))
	}
}

// publish delivers evt without blocking, first flushing any pending drop
// notice. It returns the updated drop count.
func (s *Supervisor) publish(evt Event, dropped int) int {
	if dropped > 0 {
		if !s.trySend(s.dropEvent(dropped)) {
			return dropped + 1
		}
		dropped = 0
	}
	if !s.trySend(evt) {
		return dropped + 1
	}
	return dropped
}

func (s *Supervisor) logEvent(line, source string) Event {
	level := "info"
	if source == SourceStderr {
		level = "warn"
	}
	return Event{
		Timestamp: time.Now(),
		Process:   s.Name(),
		Type:      EventTypeLog,
		Message:   line,
		Level:     level,
		Source:    source,
	}
}

func (s *Supervisor) dropEvent(count int) Event {
	return Event{
		Timestamp: time.Now(),
		Process:   s.Name(),
		Type:      EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    SourceSystem,
	}
}
