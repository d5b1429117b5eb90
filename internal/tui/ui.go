package tui

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/devdock/internal/cliutil"
	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/desktop"
	"github.com/Paintersrp/devdock/internal/engine"
)

const (
	tableTitle          = "Processes"
	outputTitle         = "Output"
	systemTitle         = "System"
	mainPageName        = "main"
	filterPageName      = "filter"
	formPageName        = "form"
	modalPageName       = "modal"
	defaultLogRetention = 500
	systemRetention     = 200
	helpText            = "[::b]s[::-] start  [::b]x[::-] stop  [::b]a[::-] add  [::b]e[::-] edit  [::b]d[::-] delete  [::b]c[::-] duplicate  [::b]o[::-] browser  [::b]l[::-] log  [::b]/[::-] filter  [::b]q[::-] quit"
)

// Controller is the process management surface the interface drives.
// *engine.Manager satisfies it.
type Controller interface {
	List() []engine.Snapshot
	Output(name string) (string, error)
	Start(name string) error
	Stop(ctx context.Context, name string) error
	Add(cfg config.Process) error
	Update(name string, cfg config.Process) error
	Remove(ctx context.Context, name string) error
	Duplicate(name string) (config.Process, error)
}

// Desktop opens URLs and log files. desktop.Opener satisfies it.
type Desktop interface {
	OpenBrowser(port int) (string, error)
	OpenLog(path string) error
}

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of output lines retained for each process.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// WithDesktop overrides the browser and log viewer integration.
func WithDesktop(d Desktop) Option {
	return func(u *UI) {
		if d != nil {
			u.desktop = d
		}
	}
}

// WithRedactor masks secret values in rendered output.
func WithRedactor(r *cliutil.Redactor) Option {
	return func(u *UI) {
		u.redactor = r
	}
}

// UI coordinates the interactive process interface backed by tview.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	output *tview.TextView
	system *tview.TextView
	events chan engine.Event

	ctrl     Controller
	desktop  Desktop
	redactor *cliutil.Redactor

	procs  map[string]*processState
	order  []string
	sysLog []string

	visible       []string
	selected      string
	filter        string
	filterExpr    *regexp.Regexp
	outputFocused bool
	maxLogs       int

	// rendering is set while the table is rebuilt under mu, so the
	// selection callback does not re-enter the lock.
	rendering bool

	mu sync.RWMutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	actions   sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type processState struct {
	snap  engine.Snapshot
	lines []string
}

// New constructs a UI driving ctrl, configured with the supplied options.
func New(ctrl Controller, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	output := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	output.SetBorder(true).SetTitle(outputTitle)

	system := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	system.SetBorder(true).SetTitle(systemTitle)

	help := tview.NewTextView().SetDynamicColors(true).SetText(helpText)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 2, true).
		AddItem(output, 0, 3, false).
		AddItem(system, 8, 0, false).
		AddItem(help, 1, 0, false)

	pages := tview.NewPages().AddPage(mainPageName, flex, true, true)

	ui := &UI{
		app:     app,
		pages:   pages,
		table:   table,
		output:  output,
		system:  system,
		events:  make(chan engine.Event, 256),
		ctrl:    ctrl,
		desktop: desktop.Default,
		procs:   make(map[string]*processState),
		maxLogs: defaultLogRetention,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		if ui.rendering {
			return
		}
		ui.mu.Lock()
		defer ui.mu.Unlock()
		if ui.syncSelection(row) {
			ui.renderOutputLocked()
		}
	})

	output.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			ui.toggleFocus()
			return nil
		}
		return event
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.syncProcessesLocked(ui.ctrl.List())
	ui.seedOutputLocked()
	ui.refreshTableLocked()
	ui.renderOutputLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where supervisor events should be delivered.
func (u *UI) EventSink() chan<- engine.Event {
	return u.events
}

// CloseEvents releases the event channel and waits for the consumer to
// exit. The sink must keep being fed until the event source is closed.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
	u.wg.Wait()
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop is invoked
// or the provided context is cancelled. Events delivered after Run returns are
// discarded until CloseEvents.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.Stop()
	u.actions.Wait()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

// consumeEvents keeps draining after cancellation so supervisors never block
// on a full sink while the caller shuts them down.
func (u *UI) consumeEvents(ctx context.Context) {
	draining := false
	ctxDone := ctx.Done()

	for {
		select {
		case <-ctxDone:
			draining = true
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if u.overlayActive() {
		return event
	}

	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 's':
			u.withSelected(u.startProcess)
			return nil
		case 'x':
			u.withSelected(u.stopProcess)
			return nil
		case 'a':
			u.showProcessForm("", nil)
			return nil
		case 'e':
			u.withSelected(u.editProcess)
			return nil
		case 'd':
			u.withSelected(u.confirmRemove)
			return nil
		case 'c':
			u.withSelected(u.duplicateProcess)
			return nil
		case 'o':
			u.withSelected(u.openBrowser)
			return nil
		case 'l':
			u.withSelected(u.openLog)
			return nil
		}
	}
	return event
}

func (u *UI) overlayActive() bool {
	for _, name := range []string{filterPageName, formPageName, modalPageName} {
		if u.pages.HasPage(name) {
			return true
		}
	}
	return false
}

func (u *UI) toggleFocus() {
	if u.outputFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.output)
	}
	u.outputFocused = !u.outputFocused
}

func (u *UI) focusMain() {
	if u.outputFocused {
		u.app.SetFocus(u.output)
		return
	}
	u.app.SetFocus(u.table)
}

func (u *UI) withSelected(fn func(name string)) {
	u.mu.RLock()
	name := u.selected
	u.mu.RUnlock()
	if name == "" {
		return
	}
	fn(name)
}

func (u *UI) showFilterPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Regex filter: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.pages.RemovePage(filterPageName)
			u.focusMain()
			u.applyFilter(input.GetText())
		}).
		AddButton("Cancel", func() {
			u.pages.RemovePage(filterPageName)
			u.focusMain()
		})

	form.SetBorder(true).SetTitle("Filter Processes")

	u.pages.AddPage(filterPageName, centered(form, 60, 7), true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		u.mu.Lock()
		u.filter = ""
		u.filterExpr = nil
		u.mu.Unlock()
		u.queueRefresh(true)
		return
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		u.showErrorModal(fmt.Sprintf("Invalid filter: %v", err))
		return
	}

	u.mu.Lock()
	u.filter = expr
	u.filterExpr = re
	u.mu.Unlock()
	u.queueRefresh(true)
}

func (u *UI) showErrorModal(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.closeModal()
		})

	u.showModal(modal)
}

func (u *UI) showModal(modal *tview.Modal) {
	u.pages.RemovePage(modalPageName)
	u.pages.AddPage(modalPageName, modal, true, true)
	u.app.SetFocus(modal)
}

// closeModal returns focus to the form underneath, if any.
func (u *UI) closeModal() {
	u.pages.RemovePage(modalPageName)
	if name, item := u.pages.GetFrontPage(); name != mainPageName && item != nil {
		u.app.SetFocus(item)
		return
	}
	u.focusMain()
}

func (u *UI) applyEvent(evt engine.Event) {
	var snaps []engine.Snapshot
	if evt.Type == engine.EventTypeStatus {
		snaps = u.ctrl.List()
	}

	u.mu.Lock()
	if snaps != nil {
		u.syncProcessesLocked(snaps)
	}
	u.applyEventLocked(evt)
	updateOutput := evt.Process == u.selected
	u.mu.Unlock()

	u.queueRefresh(updateOutput)
}

// applyEventLocked folds one event into the view model. Status events reset
// the captured output when a new run starts.
func (u *UI) applyEventLocked(evt engine.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	switch evt.Type {
	case engine.EventTypeStatus:
		state := u.stateLocked(evt.Process)
		state.snap.Status = evt.Status
		state.snap.PID = evt.PID
		state.snap.ExitCode = evt.ExitCode
		if evt.Err != nil {
			state.snap.LastError = evt.Err.Error()
		}
		if evt.Status == engine.StatusStarting {
			state.lines = nil
			state.snap.LastError = ""
		}
		if evt.Status.Terminal() || evt.Status == engine.StatusStarting {
			u.appendSystemLocked(evt, fmt.Sprintf("%s: %s", evt.Process, formatEventMessage(evt)))
		}
	case engine.EventTypeLog:
		state := u.stateLocked(evt.Process)
		line := u.redactor.Redact(evt.Message)
		if evt.Source == engine.SourceStderr {
			line = "[red]" + tview.Escape(line) + "[-]"
		} else {
			line = tview.Escape(line)
		}
		state.lines = append(state.lines, line)
		if len(state.lines) > u.maxLogs {
			trim := len(state.lines) - u.maxLogs
			state.lines = append([]string(nil), state.lines[trim:]...)
		}
	case engine.EventTypeSystem:
		msg := formatEventMessage(evt)
		if evt.Process != "" {
			msg = fmt.Sprintf("%s: %s", evt.Process, msg)
		}
		u.appendSystemLocked(evt, msg)
	}
}

func (u *UI) stateLocked(name string) *processState {
	state := u.procs[name]
	if state == nil {
		state = &processState{snap: engine.Snapshot{Config: config.Process{Name: name}, Status: engine.StatusIdle}}
		u.procs[name] = state
		u.order = append(u.order, name)
	}
	return state
}

func (u *UI) appendSystemLocked(evt engine.Event, msg string) {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	color := "white"
	switch {
	case evt.Level == "error" || evt.Style == engine.StyleRed:
		color = "red"
	case evt.Level == "warn" || evt.Style == engine.StyleOrange:
		color = "yellow"
	case evt.Style == engine.StyleGreen:
		color = "green"
	}
	line := fmt.Sprintf("[gray]%s[-] [%s]%s[-]", ts.Format("15:04:05"), color, tview.Escape(u.redactor.Redact(msg)))
	u.sysLog = append(u.sysLog, line)
	if len(u.sysLog) > systemRetention {
		u.sysLog = append([]string(nil), u.sysLog[len(u.sysLog)-systemRetention:]...)
	}
}

// syncProcessesLocked replaces the configured set with snaps, keeping the
// captured output of processes that are still present.
func (u *UI) syncProcessesLocked(snaps []engine.Snapshot) {
	next := make(map[string]*processState, len(snaps))
	order := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		name := snap.Config.Name
		state := u.procs[name]
		if state == nil {
			state = &processState{}
		}
		state.snap = snap
		next[name] = state
		order = append(order, name)
	}
	u.procs = next
	u.order = order
}

func (u *UI) seedOutputLocked() {
	for name, state := range u.procs {
		out, err := u.ctrl.Output(name)
		if err != nil || out == "" {
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
			state.lines = append(state.lines, tview.Escape(u.redactor.Redact(line)))
		}
		if len(state.lines) > u.maxLogs {
			state.lines = state.lines[len(state.lines)-u.maxLogs:]
		}
	}
}

// reload re-reads the process list after a configuration change.
func (u *UI) reload(selectName string) {
	snaps := u.ctrl.List()
	u.mu.Lock()
	u.syncProcessesLocked(snaps)
	if selectName != "" {
		u.selected = selectName
	}
	u.mu.Unlock()
	u.queueRefresh(true)
}

func (u *UI) queueRefresh(updateOutput bool) {
	select {
	case <-u.done:
		return
	default:
	}
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		u.renderSystemLocked()
		if updateOutput {
			u.renderOutputLocked()
		}
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"NAME", "STATUS", "PID", "PORT", "AUTO", "COMMAND"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	names := make([]string, 0, len(u.order))
	for _, name := range u.order {
		if u.filterExpr != nil && !u.filterExpr.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	u.visible = names

	if u.filter != "" {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filter))
	} else {
		u.table.SetTitle(tableTitle)
	}

	for row, name := range names {
		snap := u.procs[name].snap
		pid := "-"
		if snap.PID > 0 {
			pid = strconv.Itoa(snap.PID)
		}
		port := "-"
		if snap.Config.ExpectedPort > 0 {
			port = strconv.Itoa(snap.Config.ExpectedPort)
			if snap.Listening && snap.Status == engine.StatusRunning {
				port += " *"
			}
		}
		auto := ""
		if snap.Config.AutoStart {
			auto = "yes"
		}
		command := snap.Config.CommandLine()
		if len(command) > 80 {
			command = command[:77] + "..."
		}

		u.table.SetCell(row+1, 0, tview.NewTableCell(name).SetReference(name))
		u.table.SetCell(row+1, 1, tview.NewTableCell(statusLabel(snap)).SetTextColor(styleColor(snap.Status.Style())))
		u.table.SetCell(row+1, 2, tview.NewTableCell(pid))
		u.table.SetCell(row+1, 3, tview.NewTableCell(port))
		u.table.SetCell(row+1, 4, tview.NewTableCell(auto))
		u.table.SetCell(row+1, 5, tview.NewTableCell(tview.Escape(command)).SetExpansion(1))
	}

	u.ensureSelectionLocked()
}

func (u *UI) renderOutputLocked() {
	u.output.Clear()
	state := u.procs[u.selected]
	if state == nil {
		u.output.SetTitle(outputTitle)
		return
	}

	u.output.SetTitle(fmt.Sprintf("%s (%s)", outputTitle, u.selected))
	if len(state.lines) > 0 {
		fmt.Fprint(u.output, strings.Join(state.lines, "\n"))
	}
	u.output.ScrollToEnd()
}

func (u *UI) renderSystemLocked() {
	u.system.Clear()
	fmt.Fprint(u.system, strings.Join(u.sysLog, "\n"))
	u.system.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked() {
	u.rendering = true
	defer func() { u.rendering = false }()

	if len(u.visible) == 0 {
		u.selected = ""
		u.table.Select(0, 0)
		return
	}

	idx := -1
	for i, name := range u.visible {
		if name == u.selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
		u.selected = u.visible[0]
	}
	u.table.Select(idx+1, 0)
}

// syncSelection reports whether the selected process changed.
func (u *UI) syncSelection(row int) bool {
	if row <= 0 || row-1 >= len(u.visible) {
		return false
	}
	name := u.visible[row-1]
	if name == u.selected {
		return false
	}
	u.selected = name
	return true
}

func statusLabel(snap engine.Snapshot) string {
	label := snap.Status.Label()
	if snap.Status == engine.StatusExitedError && snap.ExitCode != nil {
		label = fmt.Sprintf("%s (%d)", label, *snap.ExitCode)
	}
	return label
}

func styleColor(style string) tcell.Color {
	switch style {
	case engine.StyleGreen:
		return tcell.ColorGreen
	case engine.StyleOrange:
		return tcell.ColorOrange
	case engine.StyleRed:
		return tcell.ColorRed
	default:
		return tcell.ColorGray
	}
}

func formatEventMessage(evt engine.Event) string {
	msg := evt.Message
	if evt.Err != nil {
		if msg == "" {
			msg = evt.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, evt.Err)
		}
	}
	if evt.Reason != "" {
		if msg == "" {
			return evt.Reason
		}
		msg = fmt.Sprintf("%s (%s)", msg, evt.Reason)
	}
	return msg
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
}
