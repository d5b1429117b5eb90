package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/logfile"
	"github.com/Paintersrp/devdock/internal/metrics"
	"github.com/Paintersrp/devdock/internal/probe"
	"github.com/Paintersrp/devdock/internal/registry"
	"github.com/Paintersrp/devdock/internal/runtime/process"
)

const (
	// DefaultStopTimeout bounds the graceful phase of a stop.
	DefaultStopTimeout = 5 * time.Second
	// DefaultDrainTimeout bounds how long output is drained after exit.
	DefaultDrainTimeout = 2 * time.Second
)

// Options configures a Supervisor. Zero values select defaults.
type Options struct {
	Registry      *registry.Registry
	Ports         probe.PortChecker
	LogDir        string
	StopTimeout   time.Duration
	DrainTimeout  time.Duration
	OutputLimit   int
	ProbeInterval time.Duration
	Logger        *slog.Logger
	// Events receives status, system and log events. Status and system
	// events block until delivered, so the channel must be drained.
	Events chan<- Event
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = registry.New()
	}
	if o.Ports == nil {
		o.Ports = probe.LoopbackChecker{}
	}
	if o.LogDir == "" {
		o.LogDir = logfile.DefaultDirectory
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.OutputLimit <= 0 {
		o.OutputLimit = DefaultOutputLimit
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Snapshot is a point-in-time view of a supervised process.
type Snapshot struct {
	Config    config.Process
	Status    Status
	PID       int
	ExitCode  *int
	LastError string
	LogPath   string
	StartedAt time.Time
	Listening bool
}

// Supervisor manages the lifecycle of one configured process: the port
// precheck, the spawn, output capture and the graceful-then-forced stop.
// Each Start creates a new run; a run is finalized exactly once, either by
// its exit watcher or by Stop.
type Supervisor struct {
	opts Options

	// opMu serializes Start and Stop. emitMu keeps status events in the
	// order the transitions were applied.
	opMu   sync.Mutex
	emitMu sync.Mutex

	mu        sync.Mutex
	cfg       config.Process
	status    Status
	current   *run
	sink      *logfile.Sink
	pid       int
	exitCode  *int
	lastErr   error
	startedAt time.Time
	listening bool

	buf   *outputBuffer
	tasks sync.WaitGroup
}

// childProcess is the handle a run drives once the process is spawned.
type childProcess interface {
	PID() int
	Wait() error
	Terminate() error
	Kill() error
	CloseOutput()
}

type run struct {
	child  childProcess
	sink   *logfile.Sink
	alive  atomic.Bool
	exited chan struct{}
	done   chan struct{}

	waitErr     error
	cancelProbe context.CancelFunc

	// claimed is guarded by Supervisor.mu. The first of the exit watcher
	// and Stop to set it owns finalization of the run.
	claimed bool
}

// Alive reports whether the run's child has not exited yet.
func (r *run) Alive() bool {
	return r.alive.Load()
}

// NewSupervisor constructs an idle supervisor for cfg.
func NewSupervisor(cfg config.Process, opts Options) *Supervisor {
	opts = opts.withDefaults()
	return &Supervisor{
		opts:   opts,
		cfg:    cfg.Clone(),
		status: StatusIdle,
		buf:    newOutputBuffer(opts.OutputLimit),
	}
}

// Name returns the current process name.
func (s *Supervisor) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Name
}

// Config returns a copy of the configuration used by the next start.
func (s *Supervisor) Config() config.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// SetConfig replaces the configuration used by the next start. A running
// child is not affected. Use Rename to change the name.
func (s *Supervisor) SetConfig(cfg config.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Name != s.cfg.Name {
		return fmt.Errorf("set config %q: name changes require a rename", s.cfg.Name)
	}
	s.cfg = cfg.Clone()
	return nil
}

// Status returns the latest lifecycle status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Alive reports whether a child is currently running.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.claimed && s.current.Alive()
}

// Output returns the captured output of the latest run.
func (s *Supervisor) Output() string {
	return s.buf.String()
}

// OutputLines returns the captured output of the latest run line by line.
func (s *Supervisor) OutputLines() []string {
	return s.buf.Lines()
}

// LogPath returns the log file location for the current name.
func (s *Supervisor) LogPath() string {
	return logfile.LogPath(s.opts.LogDir, s.Name())
}

// Snapshot returns the current state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Config:    s.cfg.Clone(),
		Status:    s.status,
		PID:       s.pid,
		StartedAt: s.startedAt,
		Listening: s.listening,
		LogPath:   logfile.LogPath(s.opts.LogDir, s.cfg.Name),
	}
	if s.exitCode != nil {
		snap.ExitCode = intPtr(*s.exitCode)
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// Start launches the process unless it is already running. It returns once
// the spawn attempt has resolved; output capture and exit observation carry
// on in the background. Launch failures are reported both as a terminal
// status and as the returned error.
func (s *Supervisor) Start() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	prev := s.current
	s.mu.Unlock()
	if prev != nil {
		s.mu.Lock()
		live := !prev.claimed && prev.Alive()
		s.mu.Unlock()
		if live {
			s.logSystem(slog.LevelInfo, ReasonAlreadyLive, fmt.Sprintf("%s is already running", s.Name()), nil)
			return nil
		}
		// The previous run may still be draining output.
		<-prev.done
	}

	cfg := s.Config()
	if s.opts.Registry.IsLive(cfg.Name) {
		s.logSystem(slog.LevelInfo, ReasonAlreadyLive, fmt.Sprintf("%s is already running", cfg.Name), nil)
		return nil
	}

	s.setStatus(StatusStarting, "", nil, func() {
		s.exitCode = nil
		s.lastErr = nil
		s.pid = 0
		s.listening = false
	})

	spec := cfg.Spec()
	if spec.Port > 0 && s.opts.Ports.IsPortBusy(spec.Port) {
		err := fmt.Errorf("%w: port %d is in use", ErrPortUnavailable, spec.Port)
		metrics.IncrementPortConflicts(cfg.Name)
		s.setStatus(StatusPortBusy, ReasonPortBusy, err, func() { s.lastErr = err })
		s.logSystem(slog.LevelWarn, ReasonPortBusy, fmt.Sprintf("%s not started: port %d is already in use", cfg.Name, spec.Port), err)
		return err
	}

	r := &run{exited: make(chan struct{}), done: make(chan struct{})}
	r.alive.Store(true)
	// Registering under s.mu keeps a concurrent Rename from slipping between
	// reading the name and claiming it.
	s.mu.Lock()
	cfg.Name = s.cfg.Name
	regErr := s.opts.Registry.Register(cfg.Name, r)
	s.mu.Unlock()
	if err := regErr; err != nil {
		err = fmt.Errorf("%w: %w", ErrLaunchFault, err)
		s.setStatus(StatusLaunchError, ReasonLaunchFailed, err, func() { s.lastErr = err })
		s.logSystem(slog.LevelError, ReasonLaunchFailed, fmt.Sprintf("%s not started", cfg.Name), err)
		return err
	}

	child, err := process.Spawn(process.Options{Spec: spec, Env: cfg.Env})
	if err != nil {
		r.alive.Store(false)
		s.opts.Registry.Unregister(cfg.Name, r)
		status := StatusLaunchError
		if errors.Is(err, process.ErrNotFound) {
			status = StatusCommandNotFound
			err = fmt.Errorf("%w: %s: %w", ErrCommandNotFound, spec.String(), err)
		} else {
			err = fmt.Errorf("%w: %s: %w", ErrLaunchFault, spec.String(), err)
		}
		s.setStatus(status, ReasonLaunchFailed, err, func() { s.lastErr = err })
		s.logSystem(slog.LevelError, ReasonLaunchFailed, fmt.Sprintf("%s failed to start", cfg.Name), err)
		return err
	}

	sink, sinkErr := logfile.OpenSink(s.opts.LogDir, cfg.Name)
	if sinkErr != nil {
		sink = nil
	}
	r.child = child
	r.sink = sink
	var out lineSink
	if sink != nil {
		out = sink
	}

	probeCtx, cancel := context.WithCancel(context.Background())
	r.cancelProbe = cancel

	s.buf.Reset()
	var leftover error
	s.setStatus(StatusRunning, "", nil, func() {
		if s.sink != nil && s.sink != sink {
			leftover = s.sink.Close()
		}
		s.current = r
		s.sink = sink
		s.pid = child.PID()
		s.startedAt = time.Now()
	})
	if sinkErr != nil {
		s.logSystem(slog.LevelError, "", fmt.Sprintf("%s output will not be written to disk", cfg.Name), fmt.Errorf("%w: %w", ErrLogSinkOpen, sinkErr))
	}
	if leftover != nil {
		s.logSystem(slog.LevelWarn, "", fmt.Sprintf("closing previous log for %s", cfg.Name), leftover)
	}

	metrics.IncrementStarts(cfg.Name)
	metrics.SetProcessRunning(cfg.Name, true)
	s.logSystem(slog.LevelInfo, "", fmt.Sprintf("%s started (pid %d): %s", cfg.Name, child.PID(), spec.String()), nil)

	var pumps sync.WaitGroup
	pumps.Add(2)
	s.tasks.Add(3)
	go func() {
		defer s.tasks.Done()
		defer pumps.Done()
		s.pump(child.Stdout(), SourceStdout, out, s.buf)
	}()
	go func() {
		defer s.tasks.Done()
		defer pumps.Done()
		s.pump(child.Stderr(), SourceStderr, out, s.buf)
	}()
	go s.watch(r, &pumps)

	if spec.Port > 0 {
		s.tasks.Add(1)
		go s.awaitListening(probeCtx, r, spec.Port)
	}
	return nil
}

// Stop ends the current run. The child is asked to terminate and given the
// stop timeout to exit; after that, or as soon as ctx is done, it is killed
// and Stop waits for it to go away. Stopping a process that is not running
// only closes any leftover log sink and reports Stopped. A child that has
// already exited on its own is left to its exit watcher, so its exit status
// stands.
func (s *Supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	r := s.current
	owned := r != nil && !r.claimed && r.Alive()
	exitedAlone := r != nil && !r.claimed && !owned
	if owned {
		r.claimed = true
	}
	s.mu.Unlock()

	if !owned {
		if r != nil {
			<-r.done
		}
		if exitedAlone {
			s.logSystem(slog.LevelInfo, ReasonNotRunning, fmt.Sprintf("%s already exited", s.Name()), nil)
			return nil
		}
		s.stopIdle()
		return nil
	}

	name := s.Name()
	started := time.Now()
	s.setStatus(StatusStopping, ReasonStopRequested, nil, nil)
	s.logSystem(slog.LevelInfo, ReasonStopRequested, fmt.Sprintf("stopping %s", name), nil)

	status, reason, err := s.terminate(ctx, r)
	var code *int
	select {
	case <-r.exited:
		_, code, _, _ = classifyExit(r.waitErr)
	default:
	}
	s.finalize(r, status, reason, code, err)
	metrics.ObserveStopDuration(name, time.Since(started))
	return err
}

func (s *Supervisor) terminate(ctx context.Context, r *run) (Status, string, error) {
	if err := r.child.Terminate(); err != nil {
		stopErr := fmt.Errorf("%w: terminate: %w", ErrStopFault, err)
		if kerr := r.child.Kill(); kerr != nil {
			return StatusErrorStopping, ReasonStopFailed, errors.Join(stopErr, fmt.Errorf("%w: kill: %w", ErrStopFault, kerr))
		}
		<-r.exited
		return StatusErrorStopping, ReasonStopFailed, stopErr
	}

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-r.exited:
		return StatusStopped, ReasonStopRequested, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	metrics.IncrementStopEscalations(s.Name())
	if err := r.child.Kill(); err != nil {
		return StatusErrorStopping, ReasonStopFailed, fmt.Errorf("%w: kill: %w", ErrStopFault, err)
	}
	<-r.exited
	return StatusStoppedForced, ReasonStopEscalated, nil
}

func (s *Supervisor) stopIdle() {
	var closeErr error
	s.setStatus(StatusStopped, ReasonNotRunning, nil, func() {
		if s.sink != nil {
			closeErr = s.sink.Close()
			s.sink = nil
		}
	})
	name := s.Name()
	s.logSystem(slog.LevelInfo, ReasonNotRunning, fmt.Sprintf("%s is not running", name), nil)
	if closeErr != nil {
		s.logSystem(slog.LevelWarn, "", fmt.Sprintf("closing log for %s", name), closeErr)
	}
}

// watch waits for the child, lets the pumps drain and finalizes the run
// unless Stop already owns it.
func (s *Supervisor) watch(r *run, pumps *sync.WaitGroup) {
	defer s.tasks.Done()

	err := r.child.Wait()
	r.alive.Store(false)
	s.drain(r, pumps)
	r.waitErr = err
	close(r.exited)

	s.mu.Lock()
	if r.claimed {
		s.mu.Unlock()
		return
	}
	r.claimed = true
	s.mu.Unlock()

	status, code, reason, exitErr := classifyExit(err)
	s.finalize(r, status, reason, code, exitErr)
}

// drain waits for both pumps to reach end of stream. Descendants that
// inherited the pipes can keep them open, so after the drain timeout the
// read ends are closed to release the pumps.
func (s *Supervisor) drain(r *run, pumps *sync.WaitGroup) {
	drained := make(chan struct{})
	go func() {
		pumps.Wait()
		close(drained)
	}()

	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		r.child.CloseOutput()
		<-drained
	}
	r.child.CloseOutput()
}

func classifyExit(err error) (Status, *int, string, error) {
	if err == nil {
		return StatusExitedOk, intPtr(0), ReasonExit, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return StatusExitedError, nil, ReasonSignaled, err
		}
		return StatusExitedError, intPtr(code), ReasonExit, err
	}
	return StatusExitedError, nil, ReasonWaitFailed, fmt.Errorf("%w: %w", ErrWaitFault, err)
}

// finalize closes the run's sink, removes the registry entry and publishes
// the terminal status, in that order.
func (s *Supervisor) finalize(r *run, status Status, reason string, code *int, err error) {
	if r.cancelProbe != nil {
		r.cancelProbe()
	}

	var (
		name     string
		closeErr error
	)
	s.setStatus(status, reason, err, func() {
		name = s.cfg.Name
		s.opts.Registry.Unregister(name, r)
		if r.sink != nil {
			closeErr = r.sink.Close()
		}
		if s.sink == r.sink {
			s.sink = nil
		}
		s.exitCode = code
		s.lastErr = err
		s.pid = 0
		s.listening = false
	})
	close(r.done)

	metrics.SetProcessRunning(name, false)
	metrics.IncrementExits(name, string(status))

	level := slog.LevelInfo
	var msg string
	switch {
	case status == StatusStopped:
		msg = fmt.Sprintf("%s stopped", name)
	case status == StatusStoppedForced:
		level = slog.LevelWarn
		msg = fmt.Sprintf("%s did not stop within %s and was killed", name, s.opts.StopTimeout)
	case status == StatusErrorStopping:
		level = slog.LevelError
		msg = fmt.Sprintf("error stopping %s", name)
	case status == StatusExitedOk:
		msg = fmt.Sprintf("%s exited", name)
	case reason == ReasonSignaled:
		level = slog.LevelWarn
		msg = fmt.Sprintf("%s was terminated by a signal", name)
	case reason == ReasonWaitFailed:
		level = slog.LevelError
		msg = fmt.Sprintf("lost track of %s", name)
	case code != nil:
		level = slog.LevelWarn
		msg = fmt.Sprintf("%s exited with code %d", name, *code)
	default:
		msg = fmt.Sprintf("%s finished: %s", name, status.Label())
	}
	s.logSystem(level, reason, msg, err)
	if closeErr != nil {
		s.logSystem(slog.LevelWarn, "", fmt.Sprintf("closing log for %s", name), closeErr)
	}
}

func (s *Supervisor) awaitListening(ctx context.Context, r *run, port int) {
	defer s.tasks.Done()
	if err := probe.WaitListening(ctx, port, s.opts.ProbeInterval); err != nil {
		return
	}
	s.mu.Lock()
	if s.current != r || r.claimed {
		s.mu.Unlock()
		return
	}
	s.listening = true
	name := s.cfg.Name
	s.mu.Unlock()
	s.logSystem(slog.LevelInfo, ReasonListening, fmt.Sprintf("%s is listening on %s", name, probe.URL(port)), nil)
}

// Rename changes the process name. A live registry entry moves with it in a
// single step, so the running child stays reachable under the new name.
func (s *Supervisor) Rename(newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldName := s.cfg.Name
	if oldName == newName {
		return nil
	}
	if err := s.opts.Registry.Rename(oldName, newName); err != nil {
		return err
	}
	s.cfg.Name = newName
	metrics.RenameProcess(oldName, newName)
	return nil
}

// Wait blocks until every background task of every run has returned.
func (s *Supervisor) Wait() {
	s.tasks.Wait()
}

// setStatus applies a transition under the state lock and publishes it.
func (s *Supervisor) setStatus(status Status, reason string, err error, apply func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.status = status
	if apply != nil {
		apply()
	}
	evt := Event{
		Timestamp: time.Now(),
		Process:   s.cfg.Name,
		Type:      EventTypeStatus,
		Status:    status,
		Style:     status.Style(),
		Message:   status.Label(),
		PID:       s.pid,
		Err:       err,
		Reason:    reason,
	}
	if s.exitCode != nil {
		evt.ExitCode = intPtr(*s.exitCode)
	}
	s.mu.Unlock()

	s.opts.Logger.Debug("status changed",
		slog.String("process", evt.Process),
		slog.String("status", string(status)),
		slog.Int("pid", evt.PID),
		slog.String("reason", reason))
	s.send(evt)
}

// logSystem records a human readable message for the system log.
func (s *Supervisor) logSystem(level slog.Level, reason, msg string, err error) {
	s.mu.Lock()
	name, pid, status := s.cfg.Name, s.pid, s.status
	s.mu.Unlock()

	attrs := []any{
		slog.String("process", name),
		slog.Int("pid", pid),
		slog.String("status", string(status)),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	s.opts.Logger.Log(context.Background(), level, msg, attrs...)

	text := msg
	if err != nil {
		text = fmt.Sprintf("%s: %v", msg, err)
	}
	s.send(Event{
		Timestamp: time.Now(),
		Process:   name,
		Type:      EventTypeSystem,
		Status:    status,
		Message:   text,
		Level:     levelName(level),
		Source:    SourceSystem,
		PID:       pid,
		Err:       err,
		Reason:    reason,
	})
}

func (s *Supervisor) send(evt Event) {
	if s.opts.Events == nil {
		return
	}
	s.opts.Events <- evt
}

func (s *Supervisor) trySend(evt Event) bool {
	if s.opts.Events == nil {
		return true
	}
	select {
	case s.opts.Events <- evt:
		return true
	default:
		return false
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
