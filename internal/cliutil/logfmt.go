package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/devdock/internal/engine"
)

// LogRecord represents an engine event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Process   string    `json:"process"`
	Type      string    `json:"type"`
	Status    string    `json:"status,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// NewLogRecord converts an engine event into a structured record. Messages
// are passed through r.
func NewLogRecord(event engine.Event, r *Redactor) LogRecord {
	level := event.Level
	if level == "" {
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := event.Source
	if source == "" {
		source = engine.SourceSystem
	}
	typ := event.Type
	if typ == "" {
		typ = engine.EventTypeLog
	}
	return LogRecord{
		Timestamp: event.Timestamp,
		Process:   event.Process,
		Type:      string(typ),
		Status:    string(event.Status),
		Level:     level,
		Message:   r.Redact(event.Message),
		Source:    source,
		PID:       event.PID,
		ExitCode:  event.ExitCode,
		Reason:    event.Reason,
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|warning|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn", "warning":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeEvent encodes an event to JSON, reporting errors to stderr if needed.
func EncodeEvent(enc *json.Encoder, stderr io.Writer, event engine.Event, r *Redactor) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event, r)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode event: %v\n", err)
	}
}

// FormatEvent renders an event as one line of human readable text.
func FormatEvent(event engine.Event, r *Redactor) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := fmt.Sprintf("%s [%s]", ts.Format("15:04:05"), event.Process)
	switch event.Type {
	case engine.EventTypeStatus:
		line := fmt.Sprintf("%s status: %s", prefix, event.Status.Label())
		if event.PID > 0 && event.Status.Live() {
			line += fmt.Sprintf(" (pid %d)", event.PID)
		}
		if event.ExitCode != nil && event.Status.Terminal() {
			line += fmt.Sprintf(" (code %d)", *event.ExitCode)
		}
		return line
	case engine.EventTypeSystem:
		return fmt.Sprintf("%s %s: %s", prefix, event.Level, r.Redact(event.Message))
	default:
		if event.Source == engine.SourceStderr {
			return fmt.Sprintf("%s ! %s", prefix, r.Redact(event.Message))
		}
		return fmt.Sprintf("%s %s", prefix, r.Redact(event.Message))
	}
}
