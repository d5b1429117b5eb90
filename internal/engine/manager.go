package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/metrics"
	"github.com/Paintersrp/devdock/internal/registry"
)

// DefaultEventBuffer is the capacity of the manager's event channel.
const DefaultEventBuffer = 1024

// Manager owns the configured processes: one supervisor per record, the
// shared registry and the event channel every supervisor publishes to.
// Configuration changes made through the manager are persisted to the store.
type Manager struct {
	store  *config.Store
	reg    *registry.Registry
	opts   Options
	logger *slog.Logger
	events chan Event

	mu     sync.RWMutex
	sups   []*Supervisor
	closed bool
}

// NewManager constructs a manager persisting to store. opts supplies the
// supervisor settings; its Registry and Events fields are owned by the
// manager and ignored. A non-positive buffer selects DefaultEventBuffer.
func NewManager(store *config.Store, opts Options, buffer int) *Manager {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	events := make(chan Event, buffer)
	opts.Registry = registry.New()
	opts.Events = events
	opts = opts.withDefaults()
	return &Manager{
		store:  store,
		reg:    opts.Registry,
		opts:   opts,
		logger: opts.Logger,
		events: events,
	}
}

// Events returns the channel carrying every supervisor event. It must be
// drained until Close returns; Close closes it.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Registry exposes the live process registry.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// Store returns the backing configuration store.
func (m *Manager) Store() *config.Store {
	return m.store
}

// Load reads the configuration, seeding defaults when none exists, and
// creates a supervisor per record. It reports whether defaults were seeded.
func (m *Manager) Load() (bool, error) {
	procs, seeded, err := m.store.LoadOrSeed()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sups) > 0 {
		return false, errors.New("configuration already loaded")
	}
	for _, p := range procs {
		m.sups = append(m.sups, NewSupervisor(p, m.opts))
	}
	if seeded {
		m.logger.Info("seeded default configuration", slog.String("path", m.store.Path()), slog.Int("processes", len(procs)))
	}
	return seeded, nil
}

// Names returns the configured names in configuration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sups))
	for _, sup := range m.sups {
		names = append(names, sup.Name())
	}
	return names
}

// List returns a snapshot of every configured process.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sups))
	for _, sup := range m.sups {
		out = append(out, sup.Snapshot())
	}
	return out
}

// Get returns the snapshot of one process.
func (m *Manager) Get(name string) (Snapshot, error) {
	sup, err := m.Supervisor(name)
	if err != nil {
		return Snapshot{}, err
	}
	return sup.Snapshot(), nil
}

// Output returns the captured output of the latest run of name.
func (m *Manager) Output(name string) (string, error) {
	sup, err := m.Supervisor(name)
	if err != nil {
		return "", err
	}
	return sup.Output(), nil
}

// Supervisor returns the supervisor responsible for name.
func (m *Manager) Supervisor(name string) (*Supervisor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sup := m.findLocked(name); sup != nil {
		return sup, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProcess, name)
}

func (m *Manager) findLocked(name string) *Supervisor {
	for _, sup := range m.sups {
		if sup.Name() == name {
			return sup
		}
	}
	return nil
}

func (m *Manager) indexLocked(name string) int {
	for i, sup := range m.sups {
		if sup.Name() == name {
			return i
		}
	}
	return -1
}

// Start launches name.
func (m *Manager) Start(name string) error {
	m.mu.RLock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.RUnlock()
		return err
	}
	sup := m.findLocked(name)
	m.mu.RUnlock()
	if sup == nil {
		return fmt.Errorf("%w: %q", ErrUnknownProcess, name)
	}
	return sup.Start()
}

// Stop stops name and waits for the stop protocol to complete.
func (m *Manager) Stop(ctx context.Context, name string) error {
	sup, err := m.Supervisor(name)
	if err != nil {
		return err
	}
	return sup.Stop(ctx)
}

// AutoStart starts every process whose record asks for it. Launch failures
// are reported on the event channel and returned together.
func (m *Manager) AutoStart() error {
	m.mu.RLock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.RUnlock()
		return err
	}
	var targets []*Supervisor
	for _, sup := range m.sups {
		if sup.Config().AutoStart {
			targets = append(targets, sup)
		}
	}
	m.mu.RUnlock()

	var errs []error
	for _, sup := range targets {
		if err := sup.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Add appends a new record and persists the configuration.
func (m *Manager) Add(cfg config.Process) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpenLocked(); err != nil {
		return err
	}
	if m.findLocked(cfg.Name) != nil {
		return fmt.Errorf("add %q: %w", cfg.Name, ErrDuplicateName)
	}
	sup := NewSupervisor(cfg, m.opts)
	m.sups = append(m.sups, sup)
	if err := m.saveLocked(); err != nil {
		m.sups = m.sups[:len(m.sups)-1]
		return err
	}
	m.logger.Info("process added", slog.String("process", cfg.Name))
	return nil
}

// Update replaces the record stored under name. A running child keeps
// running with its old settings; the new ones apply from the next start.
// Renaming moves the live registry entry with the process.
func (m *Manager) Update(name string, cfg config.Process) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpenLocked(); err != nil {
		return err
	}
	sup := m.findLocked(name)
	if sup == nil {
		return fmt.Errorf("%w: %q", ErrUnknownProcess, name)
	}
	previous := sup.Config()
	if cfg.Name != name {
		if m.findLocked(cfg.Name) != nil {
			return fmt.Errorf("rename %q to %q: %w", name, cfg.Name, ErrDuplicateName)
		}
		if err := sup.Rename(cfg.Name); err != nil {
			return err
		}
	}
	if err := sup.SetConfig(cfg); err != nil {
		return err
	}
	if err := m.saveLocked(); err != nil {
		_ = sup.Rename(previous.Name)
		_ = sup.SetConfig(previous)
		return err
	}
	if cfg.Name != name {
		m.logger.Info("process renamed", slog.String("from", name), slog.String("process", cfg.Name))
	} else {
		m.logger.Info("process updated", slog.String("process", cfg.Name))
	}
	return nil
}

// Remove stops name if it is running, drops its record and persists the
// configuration.
func (m *Manager) Remove(ctx context.Context, name string) error {
	sup, err := m.Supervisor(name)
	if err != nil {
		return err
	}
	if sup.Alive() {
		if err := sup.Stop(ctx); err != nil {
			m.logger.Warn("stop before remove failed", slog.String("process", name), slog.Any("error", err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownProcess, name)
	}
	removed := m.sups[idx]
	m.sups = append(m.sups[:idx:idx], m.sups[idx+1:]...)
	if err := m.saveLocked(); err != nil {
		m.sups = append(m.sups[:idx], append([]*Supervisor{removed}, m.sups[idx:]...)...)
		return err
	}
	metrics.ResetProcess(name)
	m.logger.Info("process removed", slog.String("process", name))
	return nil
}

// Duplicate copies the record of name under the next free "(Copy)" name and
// returns the new record.
func (m *Manager) Duplicate(name string) (config.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpenLocked(); err != nil {
		return config.Process{}, err
	}
	src := m.findLocked(name)
	if src == nil {
		return config.Process{}, fmt.Errorf("%w: %q", ErrUnknownProcess, name)
	}
	dup := src.Config()
	dup.Name = config.DuplicateName(name, func(candidate string) bool {
		return m.findLocked(candidate) != nil
	})
	m.sups = append(m.sups, NewSupervisor(dup, m.opts))
	if err := m.saveLocked(); err != nil {
		m.sups = m.sups[:len(m.sups)-1]
		return config.Process{}, err
	}
	m.logger.Info("process duplicated", slog.String("from", name), slog.String("process", dup.Name))
	return dup, nil
}

// Reload re-reads the configuration file and reconciles it with the running
// set: new records are added, changed records apply from their next start
// and records that disappeared are stopped and dropped.
func (m *Manager) Reload(ctx context.Context) error {
	procs, err := m.store.Load()
	if err != nil {
		return err
	}
	wanted := make(map[string]config.Process, len(procs))
	for _, p := range procs {
		wanted[p.Name] = p
	}

	m.mu.Lock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	existing := make(map[string]*Supervisor, len(m.sups))
	var gone []*Supervisor
	for _, sup := range m.sups {
		name := sup.Name()
		if _, ok := wanted[name]; ok {
			existing[name] = sup
		} else {
			gone = append(gone, sup)
		}
	}
	next := make([]*Supervisor, 0, len(procs))
	for _, p := range procs {
		if sup, ok := existing[p.Name]; ok {
			if !sup.Config().Equal(p) {
				_ = sup.SetConfig(p)
				m.logger.Info("process updated from file", slog.String("process", p.Name))
			}
			next = append(next, sup)
			continue
		}
		next = append(next, NewSupervisor(p, m.opts))
		m.logger.Info("process added from file", slog.String("process", p.Name))
	}
	m.sups = next
	m.mu.Unlock()

	var errs []error
	for _, sup := range gone {
		name := sup.Name()
		if sup.Alive() {
			if err := sup.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		sup.Wait()
		metrics.ResetProcess(name)
		m.logger.Info("process removed from file", slog.String("process", name))
	}
	return errors.Join(errs...)
}

// Shutdown stops every running process concurrently.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	sups := append([]*Supervisor(nil), m.sups...)
	m.mu.RUnlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sup := range sups {
		if !sup.Alive() {
			continue
		}
		wg.Add(1)
		go func(sup *Supervisor) {
			defer wg.Done()
			if err := sup.Stop(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(sup)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close stops every running process, waits for all background work to
// finish and closes the event channel.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.Shutdown(ctx)

	m.mu.RLock()
	sups := append([]*Supervisor(nil), m.sups...)
	m.mu.RUnlock()
	for _, sup := range sups {
		sup.Wait()
	}
	close(m.events)
	return err
}

func (m *Manager) checkOpenLocked() error {
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}

func (m *Manager) saveLocked() error {
	procs := make([]config.Process, 0, len(m.sups))
	for _, sup := range m.sups {
		procs = append(procs, sup.Config())
	}
	return m.store.Save(procs)
}
