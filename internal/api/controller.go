package api

import (
	stdcontext "context"
	"time"

	"github.com/Paintersrp/devdock/internal/engine"
	"github.com/Paintersrp/devdock/internal/probe"
)

// ManagerController serves control requests from an engine.Manager.
type ManagerController struct {
	mgr *engine.Manager
}

// NewManagerController wraps mgr.
func NewManagerController(mgr *engine.Manager) *ManagerController {
	return &ManagerController{mgr: mgr}
}

// Status reports every configured process.
func (c *ManagerController) Status(stdcontext.Context) (*StatusReport, error) {
	snaps := c.mgr.List()
	report := &StatusReport{
		GeneratedAt: time.Now().UTC(),
		Processes:   make([]ProcessReport, 0, len(snaps)),
	}
	for _, snap := range snaps {
		report.Processes = append(report.Processes, ReportFromSnapshot(snap))
	}
	return report, nil
}

// Process reports a single process.
func (c *ManagerController) Process(_ stdcontext.Context, name string) (*ProcessReport, error) {
	snap, err := c.mgr.Get(name)
	if err != nil {
		return nil, err
	}
	report := ReportFromSnapshot(snap)
	return &report, nil
}

// Start launches name and reports the resulting state. Launch failures are
// returned as errors; the terminal status stays visible through Process.
func (c *ManagerController) Start(ctx stdcontext.Context, name string) (*ProcessReport, error) {
	if err := c.mgr.Start(name); err != nil {
		return nil, err
	}
	return c.Process(ctx, name)
}

// Stop stops name. A client that disconnects does not shorten the graceful
// stop window.
func (c *ManagerController) Stop(ctx stdcontext.Context, name string) (*ProcessReport, error) {
	if err := c.mgr.Stop(stdcontext.WithoutCancel(ctx), name); err != nil {
		return nil, err
	}
	return c.Process(ctx, name)
}

// Output returns the captured output of name.
func (c *ManagerController) Output(_ stdcontext.Context, name string) (*OutputReport, error) {
	sup, err := c.mgr.Supervisor(name)
	if err != nil {
		return nil, err
	}
	lines := sup.OutputLines()
	if lines == nil {
		lines = []string{}
	}
	return &OutputReport{Name: name, Lines: lines}, nil
}

// ReportFromSnapshot converts an engine snapshot into its API form.
func ReportFromSnapshot(snap engine.Snapshot) ProcessReport {
	spec := snap.Config.Spec()
	report := ProcessReport{
		Name:         snap.Config.Name,
		Command:      snap.Config.Command,
		Args:         append([]string(nil), snap.Config.Args...),
		Mode:         string(spec.Mode),
		CommandLine:  spec.String(),
		WorkingDir:   snap.Config.WorkingDir,
		AutoStart:    snap.Config.AutoStart,
		ExpectedPort: snap.Config.ExpectedPort,
		Status:       snap.Status,
		Label:        snap.Status.Label(),
		Style:        snap.Status.Style(),
		PID:          snap.PID,
		ExitCode:     snap.ExitCode,
		LastError:    snap.LastError,
		Listening:    snap.Listening,
		LogPath:      snap.LogPath,
	}
	if snap.Config.ExpectedPort > 0 {
		report.URL = probe.URL(snap.Config.ExpectedPort)
	}
	if !snap.StartedAt.IsZero() && snap.Status.Live() {
		started := snap.StartedAt.UTC()
		report.StartedAt = &started
	}
	return report
}
