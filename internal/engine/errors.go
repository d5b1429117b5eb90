package engine

import (
	"errors"

	"github.com/Paintersrp/devdock/internal/config"
)

var (
	// ErrPortUnavailable is reported when the expected port is already bound.
	ErrPortUnavailable = errors.New("port unavailable")
	// ErrCommandNotFound is reported when the program or shell is missing.
	ErrCommandNotFound = errors.New("command not found")
	// ErrLaunchFault covers every other spawn failure.
	ErrLaunchFault = errors.New("launch failed")
	// ErrLogSinkOpen is logged when the per-process log file cannot be opened.
	ErrLogSinkOpen = errors.New("open log sink")
	// ErrLogSinkWrite is logged when a line cannot be appended to the log file.
	ErrLogSinkWrite = errors.New("write log sink")
	// ErrWaitFault is reported when waiting for the child fails.
	ErrWaitFault = errors.New("wait for process")
	// ErrStopFault is reported when terminating the child fails.
	ErrStopFault = errors.New("stop process")

	// ErrUnknownProcess is returned for names without a configuration record.
	ErrUnknownProcess = errors.New("unknown process")
	// ErrManagerClosed is returned by operations on a closed manager.
	ErrManagerClosed = errors.New("manager closed")
	// ErrDuplicateName is returned when a record would reuse a taken name.
	ErrDuplicateName = config.ErrDuplicateName
)
