package engine

import (
	"time"
)

// EventType classifies notifications emitted by supervisors.
type EventType string

const (
	// EventTypeStatus reports a lifecycle transition.
	EventTypeStatus EventType = "status"
	// EventTypeLog carries one line of process output.
	EventTypeLog EventType = "log"
	// EventTypeSystem carries a human readable message for the system log.
	EventTypeSystem EventType = "system"
)

// Log sources attached to events.
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
	SourceSystem = "system"
)

// Reasons attached to status events.
const (
	ReasonPortBusy      = "port_busy"
	ReasonExit          = "exit"
	ReasonSignaled      = "signaled"
	ReasonWaitFailed    = "wait_failed"
	ReasonStopRequested = "stop_requested"
	ReasonStopEscalated = "stop_escalated"
	ReasonStopFailed    = "stop_failed"
	ReasonLaunchFailed  = "launch_failed"
	ReasonListening     = "listening"
	ReasonAlreadyLive   = "already_running"
	ReasonNotRunning    = "not_running"
)

// Event is a single state-changed notification. Log events carry the output
// line in Message; status events carry the new Status and Style.
type Event struct {
	Timestamp time.Time
	Process   string
	Type      EventType
	Status    Status
	Style     string
	Message   string
	Level     string
	Source    string
	PID       int
	ExitCode  *int
	Err       error
	Reason    string
}

// Is reports whether the event is a status transition to status.
func (e Event) Is(status Status) bool {
	return e.Type == EventTypeStatus && e.Status == status
}

func intPtr(v int) *int {
	return &v
}
