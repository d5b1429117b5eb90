package config

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned when two records share a name.
var ErrDuplicateName = errors.New("duplicate process name")

// Validate checks every record and the uniqueness of names. All problems are
// reported together.
func Validate(processes []Process) error {
	var errs []error
	seen := make(map[string]struct{}, len(processes))
	for i, p := range processes {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("[%d]: %w: %q", i, ErrDuplicateName, p.Name))
			continue
		}
		seen[p.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// DuplicateName derives a free name for a copy of base, following the
// "<base> (Copy)", "<base> (Copy 1)", ... sequence.
func DuplicateName(base string, taken func(string) bool) string {
	candidate := fmt.Sprintf("%s (Copy)", base)
	for i := 1; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s (Copy %d)", base, i)
	}
	return candidate
}

// Defaults returns the records seeded into a new configuration file.
func Defaults() []Process {
	return []Process{
		{
			Name:         "Python HTTP 8000",
			Command:      pythonExecutable(),
			Args:         []string{"-m", "http.server", "8000"},
			Mode:         "exec",
			WorkingDir:   ".",
			ExpectedPort: 8000,
		},
		{
			Name:         "Live-Server Example",
			Command:      "live-server . --port 8081",
			Mode:         "shell",
			WorkingDir:   ".",
			ExpectedPort: 8081,
		},
		{
			Name:       "Clock",
			Command:    "while true; do date; sleep 1; done",
			Mode:       "shell",
			WorkingDir: ".",
		},
	}
}
