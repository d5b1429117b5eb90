package tui

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/desktop"
	"github.com/Paintersrp/devdock/internal/engine"
)

type fakeController struct {
	mu      sync.Mutex
	snaps   []engine.Snapshot
	output  map[string]string
	started []string
	stopped []string
	removed []string
	added   []config.Process
	updated map[string]config.Process
}

func newFakeController(names ...string) *fakeController {
	f := &fakeController{output: make(map[string]string), updated: make(map[string]config.Process)}
	for _, name := range names {
		f.snaps = append(f.snaps, engine.Snapshot{
			Config: config.Process{Name: name, Command: "echo " + name},
			Status: engine.StatusIdle,
		})
	}
	return f
}

func (f *fakeController) List() []engine.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Snapshot(nil), f.snaps...)
}

func (f *fakeController) Output(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output[name], nil
}

func (f *fakeController) Start(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return nil
}

func (f *fakeController) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeController) Add(cfg config.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, cfg)
	f.snaps = append(f.snaps, engine.Snapshot{Config: cfg, Status: engine.StatusIdle})
	return nil
}

func (f *fakeController) Update(name string, cfg config.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.snaps {
		if f.snaps[i].Config.Name == name {
			f.snaps[i].Config = cfg
			f.updated[name] = cfg
			return nil
		}
	}
	return fmt.Errorf("%w: %q", engine.ErrUnknownProcess, name)
}

func (f *fakeController) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.snaps {
		if f.snaps[i].Config.Name == name {
			f.snaps = append(f.snaps[:i], f.snaps[i+1:]...)
			f.removed = append(f.removed, name)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", engine.ErrUnknownProcess, name)
}

func (f *fakeController) Duplicate(name string) (config.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, snap := range f.snaps {
		if snap.Config.Name == name {
			dup := snap.Config.Clone()
			dup.Name = name + " (Copy)"
			f.snaps = append(f.snaps, engine.Snapshot{Config: dup, Status: engine.StatusIdle})
			return dup, nil
		}
	}
	return config.Process{}, fmt.Errorf("%w: %q", engine.ErrUnknownProcess, name)
}

type fakeDesktop struct {
	mu     sync.Mutex
	urls   []string
	opened []string
}

func (d *fakeDesktop) Opener() desktop.Opener {
	return desktop.Opener{
		OpenURL: func(url string) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.urls = append(d.urls, url)
			return nil
		},
		OpenFile: func(path string) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.opened = append(d.opened, path)
			return nil
		},
	}
}

func newTestUI(t *testing.T, ctrl Controller, opts ...Option) *UI {
	t.Helper()
	ui := New(ctrl, opts...)
	ui.app.SetFocus(ui.table)
	return ui
}
