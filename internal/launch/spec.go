// Package launch describes how a managed process is started: an explicit
// launch mode plus either a shell command string or an argument vector.
package launch

import (
	"errors"
	"fmt"
	"strings"
)

// Mode declares how Command is interpreted.
type Mode string

const (
	// ModeShell hands Command to the platform shell. Args must be empty.
	ModeShell Mode = "shell"
	// ModeExec runs Command directly with Args, without shell parsing.
	ModeExec Mode = "exec"
)

var (
	// ErrEmptyCommand is returned when a spec has no command.
	ErrEmptyCommand = errors.New("command is required")
	// ErrShellArgs is returned when a shell mode spec also carries args.
	ErrShellArgs = errors.New("shell mode does not accept separate args")
)

// Spec is a fully resolved launch request.
type Spec struct {
	Mode       Mode
	Command    string
	Args       []string
	WorkingDir string
	Port       int
}

// ResolveMode returns the declared mode, defaulting to shell for a bare
// command and exec when arguments are present.
func ResolveMode(mode Mode, args []string) Mode {
	switch mode {
	case ModeShell, ModeExec:
		return mode
	}
	if len(args) > 0 {
		return ModeExec
	}
	return ModeShell
}

// ParseMode validates a textual mode. The empty string is accepted and left
// for ResolveMode to default.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case ModeShell:
		return ModeShell, nil
	case ModeExec:
		return ModeExec, nil
	default:
		return "", fmt.Errorf("unknown launch mode %q (want shell or exec)", value)
	}
}

// Validate checks the spec for internal consistency.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return ErrEmptyCommand
	}
	if ResolveMode(s.Mode, s.Args) == ModeShell && len(s.Args) > 0 {
		return ErrShellArgs
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	return nil
}

// Argv returns the argument vector handed to the operating system.
func (s Spec) Argv() ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if ResolveMode(s.Mode, s.Args) == ModeShell {
		return shellArgv(s.Command), nil
	}
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Command)
	argv = append(argv, s.Args...)
	return argv, nil
}

// String renders the spec for display. Exec arguments containing spaces are
// quoted; the result is informational and never re-parsed.
func (s Spec) String() string {
	if ResolveMode(s.Mode, s.Args) == ModeShell {
		return s.Command
	}
	parts := make([]string, 0, len(s.Args)+1)
	for _, part := range append([]string{s.Command}, s.Args...) {
		if part == "" || strings.ContainsAny(part, " \t\"") {
			part = fmt.Sprintf("%q", part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
