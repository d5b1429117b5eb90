package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/desktop"
	"github.com/Paintersrp/devdock/internal/engine"
)

// runAction executes fn off the UI goroutine. Controller calls may block for
// the whole stop window.
func (u *UI) runAction(fn func() error) {
	u.actions.Add(1)
	go func() {
		defer u.actions.Done()
		if err := fn(); err != nil {
			u.notify("error", err.Error())
		}
	}()
}

// notify appends a message to the system pane.
func (u *UI) notify(level, msg string) {
	u.mu.Lock()
	u.appendSystemLocked(engine.Event{Timestamp: time.Now(), Level: level}, msg)
	u.mu.Unlock()
	u.queueRefresh(false)
}

func (u *UI) snapshot(name string) (engine.Snapshot, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	state := u.procs[name]
	if state == nil {
		return engine.Snapshot{}, false
	}
	return state.snap, true
}

func (u *UI) startProcess(name string) {
	u.runAction(func() error {
		err := u.ctrl.Start(name)
		// Launch failures already arrive as status events.
		if errors.Is(err, engine.ErrPortUnavailable) || errors.Is(err, engine.ErrCommandNotFound) ||
			errors.Is(err, engine.ErrLaunchFault) {
			return nil
		}
		return err
	})
}

func (u *UI) stopProcess(name string) {
	u.runAction(func() error {
		err := u.ctrl.Stop(context.Background(), name)
		if errors.Is(err, engine.ErrStopFault) {
			return nil
		}
		return err
	})
}

func (u *UI) editProcess(name string) {
	snap, ok := u.snapshot(name)
	if !ok {
		return
	}
	cfg := snap.Config.Clone()
	u.showProcessForm(name, &cfg)
}

func (u *UI) saveProcess(original string, cfg config.Process) {
	u.runAction(func() error {
		if original == "" {
			if err := u.ctrl.Add(cfg); err != nil {
				return fmt.Errorf("add %s: %w", cfg.Name, err)
			}
			u.notify("info", fmt.Sprintf("added %s", cfg.Name))
		} else {
			if err := u.ctrl.Update(original, cfg); err != nil {
				return fmt.Errorf("update %s: %w", original, err)
			}
			u.moveOutput(original, cfg.Name)
			u.notify("info", fmt.Sprintf("saved %s", cfg.Name))
		}
		u.reload(cfg.Name)
		return nil
	})
}

// moveOutput keeps the captured output of a renamed process.
func (u *UI) moveOutput(from, to string) {
	if from == to {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if state, ok := u.procs[from]; ok {
		delete(u.procs, from)
		u.procs[to] = state
		for i, name := range u.order {
			if name == from {
				u.order[i] = to
			}
		}
	}
	if u.selected == from {
		u.selected = to
	}
}

func (u *UI) confirmRemove(name string) {
	text := fmt.Sprintf("Delete %s?", name)
	if snap, ok := u.snapshot(name); ok && snap.Status.Live() {
		text = fmt.Sprintf("Delete %s? The running process will be stopped first.", name)
	}
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.closeModal()
			if buttonLabel != "Delete" {
				return
			}
			u.runAction(func() error {
				if err := u.ctrl.Remove(context.Background(), name); err != nil {
					return fmt.Errorf("delete %s: %w", name, err)
				}
				u.notify("info", fmt.Sprintf("deleted %s", name))
				u.reload("")
				return nil
			})
		})
	u.showModal(modal)
}

func (u *UI) duplicateProcess(name string) {
	u.runAction(func() error {
		dup, err := u.ctrl.Duplicate(name)
		if err != nil {
			return fmt.Errorf("duplicate %s: %w", name, err)
		}
		u.notify("info", fmt.Sprintf("duplicated %s as %s", name, dup.Name))
		u.reload(dup.Name)
		return nil
	})
}

func (u *UI) openBrowser(name string) {
	snap, ok := u.snapshot(name)
	if !ok {
		return
	}
	u.runAction(func() error {
		url, err := u.desktop.OpenBrowser(snap.Config.ExpectedPort)
		if errors.Is(err, desktop.ErrNoPort) {
			u.notify("warn", fmt.Sprintf("%s has no expected port", name))
			return nil
		}
		if err != nil {
			return err
		}
		u.notify("info", fmt.Sprintf("opened %s", url))
		return nil
	})
}

func (u *UI) openLog(name string) {
	snap, ok := u.snapshot(name)
	if !ok {
		return
	}
	u.runAction(func() error {
		err := u.desktop.OpenLog(snap.LogPath)
		if errors.Is(err, desktop.ErrLogNotFound) {
			u.notify("warn", fmt.Sprintf("%s has no log file yet", name))
			return nil
		}
		return err
	})
}
