package engine

// Status is the lifecycle state of a managed process run.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusStarting        Status = "starting"
	StatusPortBusy        Status = "port_busy"
	StatusRunning         Status = "running"
	StatusStopping        Status = "stopping"
	StatusStopped         Status = "stopped"
	StatusStoppedForced   Status = "stopped_forced"
	StatusExitedOk        Status = "exited_ok"
	StatusExitedError     Status = "exited_error"
	StatusCommandNotFound Status = "command_not_found"
	StatusLaunchError     Status = "launch_error"
	StatusErrorStopping   Status = "error_stopping"
)

// Style tags used by presentation layers to colour a status.
const (
	StyleGreen  = "green"
	StyleOrange = "orange"
	StyleRed    = "red"
	StyleGray   = "gray"
)

// Live reports whether the status implies a child process exists.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusStopping
}

// Terminal reports whether the run has finished. Idle is not terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusPortBusy, StatusStopped, StatusStoppedForced, StatusExitedOk,
		StatusExitedError, StatusCommandNotFound, StatusLaunchError, StatusErrorStopping:
		return true
	default:
		return false
	}
}

// Style returns the presentation tag for the status.
func (s Status) Style() string {
	switch s {
	case StatusRunning:
		return StyleGreen
	case StatusStarting, StatusStopping:
		return StyleOrange
	case StatusPortBusy, StatusStoppedForced, StatusExitedError,
		StatusCommandNotFound, StatusLaunchError, StatusErrorStopping:
		return StyleRed
	default:
		return StyleGray
	}
}

// Label returns a short human readable form of the status.
func (s Status) Label() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusStarting:
		return "Starting..."
	case StatusPortBusy:
		return "Port in use"
	case StatusRunning:
		return "Running"
	case StatusStopping:
		return "Stopping..."
	case StatusStopped:
		return "Stopped"
	case StatusStoppedForced:
		return "Stopped (forced)"
	case StatusExitedOk:
		return "Exited"
	case StatusExitedError:
		return "Exited (error)"
	case StatusCommandNotFound:
		return "Command not found"
	case StatusLaunchError:
		return "Launch error"
	case StatusErrorStopping:
		return "Error stopping"
	default:
		return string(s)
	}
}
