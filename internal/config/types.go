// Package config persists managed process configuration records.
package config

import (
	"fmt"
	"strings"

	"github.com/Paintersrp/devdock/internal/launch"
)

// Process is the configuration of one managed process. It is immutable for
// the duration of a run and may change between runs.
type Process struct {
	Name         string            `json:"name" yaml:"name"`
	Command      string            `json:"command" yaml:"command"`
	Args         []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Mode         launch.Mode       `json:"mode,omitempty" yaml:"mode,omitempty"`
	WorkingDir   string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	AutoStart    bool              `json:"autostart" yaml:"autostart"`
	ExpectedPort int               `json:"expected_port,omitempty" yaml:"expected_port,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Spec converts the record into a launch specification.
func (p Process) Spec() launch.Spec {
	return launch.Spec{
		Mode:       launch.ResolveMode(p.Mode, p.Args),
		Command:    p.Command,
		Args:       append([]string(nil), p.Args...),
		WorkingDir: p.WorkingDir,
		Port:       p.ExpectedPort,
	}
}

// FromSpec builds a record for name from a launch specification.
func FromSpec(name string, spec launch.Spec) Process {
	return Process{
		Name:         name,
		Command:      spec.Command,
		Args:         append([]string(nil), spec.Args...),
		Mode:         launch.ResolveMode(spec.Mode, spec.Args),
		WorkingDir:   spec.WorkingDir,
		ExpectedPort: spec.Port,
	}
}

// Clone returns a deep copy of the record.
func (p Process) Clone() Process {
	dup := p
	if p.Args != nil {
		dup.Args = append([]string(nil), p.Args...)
	}
	if p.Env != nil {
		dup.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			dup.Env[k] = v
		}
	}
	return dup
}

// CommandLine renders the command for display.
func (p Process) CommandLine() string {
	return p.Spec().String()
}

// Validate checks a single record.
func (p Process) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.Mode != "" {
		if _, err := launch.ParseMode(string(p.Mode)); err != nil {
			return fmt.Errorf("process %q: %w", p.Name, err)
		}
	}
	if p.ExpectedPort < 0 || p.ExpectedPort > 65535 {
		return fmt.Errorf("process %q: expected_port %d out of range 1-65535", p.Name, p.ExpectedPort)
	}
	if err := p.Spec().Validate(); err != nil {
		return fmt.Errorf("process %q: %w", p.Name, err)
	}
	return nil
}

// Equal reports whether two records are identical.
func (p Process) Equal(other Process) bool {
	if p.Name != other.Name || p.Command != other.Command || p.Mode != other.Mode ||
		p.WorkingDir != other.WorkingDir || p.AutoStart != other.AutoStart ||
		p.ExpectedPort != other.ExpectedPort {
		return false
	}
	if len(p.Args) != len(other.Args) || len(p.Env) != len(other.Env) {
		return false
	}
	for i := range p.Args {
		if p.Args[i] != other.Args[i] {
			return false
		}
	}
	for k, v := range p.Env {
		if ov, ok := other.Env[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
