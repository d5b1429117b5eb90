package tui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func TestHandleKeyRespectsOverlayFocus(t *testing.T) {
	ui := newTestUI(t, newFakeController("api"))

	slash := tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone)
	if res := ui.handleKey(slash); res != nil {
		t.Fatalf("expected filter shortcut to be consumed when table focused")
	}

	if _, ok := ui.app.GetFocus().(*tview.InputField); !ok {
		t.Fatalf("expected filter input to have focus, got %T", ui.app.GetFocus())
	}

	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	if res := ui.handleKey(enter); res != enter {
		t.Fatalf("expected Enter to bypass global handler when overlay focused")
	}

	stop := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	if res := ui.handleKey(stop); res != stop {
		t.Fatalf("expected rune to bypass global handler when overlay focused")
	}

	ui.pages.RemovePage(filterPageName)
	ui.app.SetFocus(ui.table)

	unbound := tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone)
	if res := ui.handleKey(unbound); res != unbound {
		t.Fatalf("expected unbound rune to pass through when table focused")
	}
	if ui.outputFocused {
		t.Fatalf("expected outputFocused to match table focus")
	}
}

func TestHandleKeyTogglesOutputFocus(t *testing.T) {
	ui := newTestUI(t, newFakeController("api"))

	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	if res := ui.handleKey(enter); res != nil {
		t.Fatalf("expected Enter to be consumed")
	}
	if ui.app.GetFocus() != ui.output {
		t.Fatalf("expected output to have focus after toggle")
	}

	slash := tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone)
	if res := ui.handleKey(slash); res != nil {
		t.Fatalf("expected filter shortcut to be consumed when output focused")
	}
}

func TestLifecycleShortcutsCallController(t *testing.T) {
	ctrl := newFakeController("api", "web")
	ui := newTestUI(t, ctrl)

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone))
	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	ui.actions.Wait()

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.started) != 1 || ctrl.started[0] != "api" {
		t.Fatalf("expected api to be started, got %v", ctrl.started)
	}
	if len(ctrl.stopped) != 1 || ctrl.stopped[0] != "api" {
		t.Fatalf("expected api to be stopped, got %v", ctrl.stopped)
	}
}

func TestDuplicateShortcutSelectsCopy(t *testing.T) {
	ctrl := newFakeController("api")
	ui := newTestUI(t, ctrl)

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'c', tcell.ModNone))
	ui.actions.Wait()

	ui.mu.RLock()
	defer ui.mu.RUnlock()
	if _, ok := ui.procs["api (Copy)"]; !ok {
		t.Fatalf("expected duplicated process in view, got %v", ui.order)
	}
	if ui.selected != "api (Copy)" {
		t.Fatalf("expected copy to be selected, got %q", ui.selected)
	}
}

func TestDeleteShortcutAsksForConfirmation(t *testing.T) {
	ctrl := newFakeController("api")
	ui := newTestUI(t, ctrl)

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone))
	if !ui.pages.HasPage(modalPageName) {
		t.Fatalf("expected confirmation modal")
	}
	ui.actions.Wait()

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.removed) != 0 {
		t.Fatalf("expected no removal before confirmation, got %v", ctrl.removed)
	}
}

func TestOpenBrowserWithoutPortNotifies(t *testing.T) {
	d := &fakeDesktop{}
	ui := newTestUI(t, newFakeController("api"), WithDesktop(d.Opener()))

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'o', tcell.ModNone))
	ui.actions.Wait()

	d.mu.Lock()
	if len(d.urls) != 0 {
		t.Fatalf("expected no browser launch, got %v", d.urls)
	}
	d.mu.Unlock()

	ui.mu.RLock()
	defer ui.mu.RUnlock()
	if len(ui.sysLog) == 0 || !strings.Contains(ui.sysLog[len(ui.sysLog)-1], "api has no expected port") {
		t.Fatalf("expected port warning in system log, got %v", ui.sysLog)
	}
}

func TestOpenBrowserUsesExpectedPort(t *testing.T) {
	ctrl := newFakeController("web")
	ctrl.snaps[0].Config.ExpectedPort = 8081
	d := &fakeDesktop{}
	ui := newTestUI(t, ctrl, WithDesktop(d.Opener()))

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'o', tcell.ModNone))
	ui.actions.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) != 1 || d.urls[0] != "http://localhost:8081" {
		t.Fatalf("unexpected browser launches: %v", d.urls)
	}
}

func TestApplyFilterHidesProcesses(t *testing.T) {
	ui := newTestUI(t, newFakeController("api", "web", "worker"))

	ui.applyFilter("^w")

	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.refreshTableLocked()
	if got := strings.Join(ui.visible, ","); got != "web,worker" {
		t.Fatalf("unexpected visible processes %q", got)
	}
	if ui.selected != "web" {
		t.Fatalf("expected selection to move to first visible process, got %q", ui.selected)
	}
}
