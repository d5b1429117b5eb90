package api

import (
	stdcontext "context"
	"time"

	"github.com/Paintersrp/devdock/internal/engine"
)

// ProcessReport describes the configuration and runtime state of one
// managed process.
type ProcessReport struct {
	Name         string        `json:"name"`
	Command      string        `json:"command"`
	Args         []string      `json:"args,omitempty"`
	Mode         string        `json:"mode"`
	CommandLine  string        `json:"command_line"`
	WorkingDir   string        `json:"working_dir,omitempty"`
	AutoStart    bool          `json:"autostart"`
	ExpectedPort int           `json:"expected_port,omitempty"`
	URL          string        `json:"url,omitempty"`
	Status       engine.Status `json:"status"`
	Label        string        `json:"label"`
	Style        string        `json:"style"`
	PID          int           `json:"pid,omitempty"`
	ExitCode     *int          `json:"exit_code,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Listening    bool          `json:"listening"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	LogPath      string        `json:"log_path"`
}

// StatusReport lists every configured process.
type StatusReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Processes   []ProcessReport `json:"processes"`
}

// OutputReport carries the captured output of the latest run.
type OutputReport struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// Controller exposes process operations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Process(stdcontext.Context, string) (*ProcessReport, error)
	Start(stdcontext.Context, string) (*ProcessReport, error)
	Stop(stdcontext.Context, string) (*ProcessReport, error)
	Output(stdcontext.Context, string) (*OutputReport, error)
}
