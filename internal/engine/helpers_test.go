package engine

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/registry"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process supervision tests rely on /bin/sh")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func record(ch <-chan Event) *recorder {
	rec := &recorder{done: make(chan struct{})}
	go func() {
		defer close(rec.done)
		for evt := range ch {
			rec.mu.Lock()
			rec.events = append(rec.events, evt)
			rec.mu.Unlock()
		}
	}()
	return rec
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) statuses(process string) []Status {
	var out []Status
	for _, evt := range r.snapshot() {
		if evt.Type == EventTypeStatus && evt.Process == process {
			out = append(out, evt.Status)
		}
	}
	return out
}

func (r *recorder) hasReason(process, reason string) bool {
	for _, evt := range r.snapshot() {
		if evt.Process == process && evt.Reason == reason {
			return true
		}
	}
	return false
}

type harness struct {
	sup    *Supervisor
	reg    *registry.Registry
	rec    *recorder
	logDir string
}

func newHarness(t *testing.T, cfg config.Process, tweak func(*Options)) *harness {
	t.Helper()
	events := make(chan Event, 256)
	opts := Options{
		Registry:     registry.New(),
		LogDir:       filepath.Join(t.TempDir(), "logs"),
		StopTimeout:  time.Second,
		DrainTimeout: 500 * time.Millisecond,
		Events:       events,
	}
	if tweak != nil {
		tweak(&opts)
	}
	h := &harness{
		sup:    NewSupervisor(cfg, opts),
		reg:    opts.Registry,
		rec:    record(events),
		logDir: opts.LogDir,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.sup.Stop(ctx)
		h.sup.Wait()
		close(events)
		<-h.rec.done
	})
	return h
}

func waitForStatus(t *testing.T, sup *Supervisor, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sup.Status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status %q not reached within %s, last status %q", want, timeout, sup.Status())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %s: %s", timeout, msg)
}
