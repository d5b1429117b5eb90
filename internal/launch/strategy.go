package launch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind names a launch strategy variant.
type Kind string

const (
	KindFixed        Kind = "fixed"
	KindFileLauncher Kind = "file"
	KindFolderServer Kind = "folder"
	KindManual       Kind = "manual"
)

// PortPlaceholder is substituted with the chosen port in FolderServer.PortArgs.
const PortPlaceholder = "{port}"

// ErrMissingTarget is returned when a strategy needs a file or folder and
// none was supplied.
var ErrMissingTarget = errors.New("target path is required")

// Strategy is the closed set of ways a process command can be assembled.
// Implementations live in this package only.
type Strategy interface {
	Kind() Kind
	Build() (Spec, error)
	isStrategy()
}

// Fixed runs a predetermined program and arguments.
type Fixed struct {
	Command string
	Args    []string
	Port    int
}

func (Fixed) Kind() Kind  { return KindFixed }
func (Fixed) isStrategy() {}

func (f Fixed) Build() (Spec, error) {
	spec := Spec{Mode: ModeExec, Command: f.Command, Args: cloneArgs(f.Args), Port: f.Port}
	return spec, spec.Validate()
}

// FileLauncher runs a script or binary, optionally through an interpreter
// prefix. PrefixByExt overrides Prefix for matching file extensions.
type FileLauncher struct {
	Prefix      []string
	PrefixByExt map[string][]string
	Path        string
	Args        []string
}

func (FileLauncher) Kind() Kind  { return KindFileLauncher }
func (FileLauncher) isStrategy() {}

func (f FileLauncher) Build() (Spec, error) {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return Spec{}, ErrMissingTarget
	}
	prefix := f.Prefix
	if byExt, ok := f.PrefixByExt[strings.ToLower(filepath.Ext(path))]; ok {
		prefix = byExt
	}
	argv := make([]string, 0, len(prefix)+1+len(f.Args))
	argv = append(argv, prefix...)
	argv = append(argv, path)
	argv = append(argv, f.Args...)

	spec := Spec{Mode: ModeExec, Command: argv[0], Args: argv[1:]}
	return spec, spec.Validate()
}

// FolderServer serves a folder over HTTP. The folder is either passed as an
// argument or used as the working directory, and the port is appended using
// PortArgs.
type FolderServer struct {
	Prefix          []string
	Folder          string
	FolderAsWorkdir bool
	PortArgs        []string
	Port            int
	DefaultPort     int
}

func (FolderServer) Kind() Kind  { return KindFolderServer }
func (FolderServer) isStrategy() {}

func (f FolderServer) Build() (Spec, error) {
	if len(f.Prefix) == 0 {
		return Spec{}, ErrEmptyCommand
	}
	folder := strings.TrimSpace(f.Folder)
	if folder == "" && !f.FolderAsWorkdir {
		return Spec{}, ErrMissingTarget
	}
	port := f.Port
	if port == 0 {
		port = f.DefaultPort
	}

	argv := append([]string(nil), f.Prefix...)
	spec := Spec{Mode: ModeExec, Port: port}
	if f.FolderAsWorkdir {
		spec.WorkingDir = folder
	} else {
		argv = append(argv, folder)
	}
	if port > 0 {
		for _, arg := range f.PortArgs {
			argv = append(argv, strings.ReplaceAll(arg, PortPlaceholder, strconv.Itoa(port)))
		}
	}
	spec.Command = argv[0]
	spec.Args = argv[1:]
	return spec, spec.Validate()
}

// Manual is a raw command line interpreted by the platform shell.
type Manual struct {
	Command string
	Port    int
}

func (Manual) Kind() Kind  { return KindManual }
func (Manual) isStrategy() {}

func (m Manual) Build() (Spec, error) {
	spec := Spec{Mode: ModeShell, Command: strings.TrimSpace(m.Command), Port: m.Port}
	return spec, spec.Validate()
}

func cloneArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return append([]string(nil), args...)
}

// Preset is a named strategy template offered by the add/edit surfaces.
type Preset struct {
	ID          string
	Label       string
	TargetLabel string
	HTTP        bool
	DefaultPort int

	build func(target string, port int) Strategy
}

// Strategy instantiates the preset for a target path/command and port.
func (p Preset) Strategy(target string, port int) Strategy {
	return p.build(strings.TrimSpace(target), port)
}

// Build is shorthand for Strategy(...).Build().
func (p Preset) Build(target string, port int) (Spec, error) {
	spec, err := p.Strategy(target, port).Build()
	if err != nil {
		return Spec{}, fmt.Errorf("preset %s: %w", p.ID, err)
	}
	return spec, nil
}

var presets = []Preset{
	{
		ID:          "python-script",
		Label:       "Python script",
		TargetLabel: "Script path",
		build: func(target string, _ int) Strategy {
			return FileLauncher{Prefix: []string{pythonExecutable(), "-u"}, Path: target}
		},
	},
	{
		ID:          "node-script",
		Label:       "Node.js script",
		TargetLabel: "Script path",
		build: func(target string, _ int) Strategy {
			return FileLauncher{Prefix: []string{"node"}, Path: target}
		},
	},
	{
		ID:          "go-app",
		Label:       "Go app (binary or go run)",
		TargetLabel: "main.go or ./binary",
		build: func(target string, _ int) Strategy {
			return FileLauncher{PrefixByExt: map[string][]string{".go": {"go", "run"}}, Path: target}
		},
	},
	{
		ID:          "python-http",
		Label:       "Python http.server (serve folder)",
		TargetLabel: "Folder",
		HTTP:        true,
		DefaultPort: 8000,
		build: func(target string, port int) Strategy {
			return FolderServer{
				Prefix:          []string{pythonExecutable(), "-m", "http.server"},
				Folder:          target,
				FolderAsWorkdir: true,
				PortArgs:        []string{PortPlaceholder},
				Port:            port,
				DefaultPort:     8000,
			}
		},
	},
	{
		ID:          "live-server",
		Label:       "live-server (frontend folder)",
		TargetLabel: "Folder",
		HTTP:        true,
		DefaultPort: 8080,
		build: func(target string, port int) Strategy {
			return FolderServer{
				Prefix:      []string{"live-server"},
				Folder:      target,
				PortArgs:    []string{"--port", PortPlaceholder},
				Port:        port,
				DefaultPort: 8080,
			}
		},
	},
	{
		ID:    "mongod",
		Label: "MongoDB daemon",
		build: func(string, int) Strategy {
			return Fixed{Command: "mongod", Args: []string{"--dbpath", "./data/db", "--port", "27017"}}
		},
	},
	{
		ID:    "postgres",
		Label: "PostgreSQL server",
		build: func(string, int) Strategy {
			return Fixed{Command: "pg_ctl", Args: []string{"start", "-D", "/usr/local/var/postgres"}}
		},
	},
	{
		ID:    "redis",
		Label: "Redis server",
		build: func(string, int) Strategy {
			return Fixed{Command: "redis-server"}
		},
	},
	{
		ID:          "manual",
		Label:       "Custom command",
		TargetLabel: "Command line",
		build: func(target string, port int) Strategy {
			return Manual{Command: target, Port: port}
		},
	},
}

// Presets returns the preset catalog in display order.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by ID.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// PresetIDs lists the preset identifiers.
func PresetIDs() []string {
	ids := make([]string, 0, len(presets))
	for _, p := range presets {
		ids = append(ids, p.ID)
	}
	return ids
}
