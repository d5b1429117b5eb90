package logmux

import (
	"testing"
	"time"

	"github.com/Paintersrp/devdock/internal/engine"
)

func TestMuxFansInMultipleSources(t *testing.T) {
	mux := New(4)
	src1 := make(chan engine.Event)
	src2 := make(chan engine.Event)

	mux.Add(src1)
	mux.Add(src2)

	go func() {
		src1 <- engine.Event{Process: "api", Type: engine.EventTypeLog, Message: "api ready"}
		src1 <- engine.Event{Process: "api", Type: engine.EventTypeLog, Message: "api ok"}
		close(src1)
	}()

	go func() {
		src2 <- engine.Event{Process: "worker", Type: engine.EventTypeLog, Message: "worker ready"}
		close(src2)
	}()

	go mux.Close()

	byProcess := map[string][]string{}
	total := 0
	for evt := range mux.Output() {
		byProcess[evt.Process] = append(byProcess[evt.Process], evt.Message)
		total++
		if evt.Source != engine.SourceStdout || evt.Level != "info" {
			t.Fatalf("expected normalized stdout/info event, got %s/%s", evt.Source, evt.Level)
		}
	}

	if total != 3 {
		t.Fatalf("expected 3 events, got %d", total)
	}
	if got := byProcess["api"]; len(got) != 2 || got[0] != "api ready" || got[1] != "api ok" {
		t.Fatalf("api events out of order: %v", got)
	}
	if got := byProcess["worker"]; len(got) != 1 || got[0] != "worker ready" {
		t.Fatalf("unexpected worker events: %v", got)
	}
}

func TestMuxEmitsDropMetaEvents(t *testing.T) {
	mux := New(1)
	src := make(chan engine.Event)

	mux.Add(src)

	done := make(chan struct{})
	go func() {
		src <- engine.Event{Process: "api", Type: engine.EventTypeLog, Message: "line-1", Level: "info"}
		src <- engine.Event{Process: "api", Type: engine.EventTypeLog, Message: "line-2", Level: "info"}
		src <- engine.Event{Process: "api", Type: engine.EventTypeLog, Message: "line-3", Level: "info"}
		close(src)
		close(done)
	}()

	<-done
	// Let the mux finish processing the last line before draining.
	time.Sleep(50 * time.Millisecond)

	go mux.Close()

	var events []engine.Event
	for evt := range mux.Output() {
		events = append(events, evt)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events (1 log + 1 meta), got %d", len(events))
	}

	if events[0].Message != "line-1" {
		t.Fatalf("expected first event to be the original log, got %q", events[0].Message)
	}

	meta := events[1]
	if meta.Process != "api" {
		t.Fatalf("meta event process mismatch: got %s", meta.Process)
	}
	if meta.Message != "dropped=2" {
		t.Fatalf("expected drop metadata, got %q", meta.Message)
	}
	if meta.Source != engine.SourceSystem {
		t.Fatalf("expected meta source to be system, got %s", meta.Source)
	}
	if meta.Level != "warn" {
		t.Fatalf("expected meta level warn, got %s", meta.Level)
	}
	if time.Since(meta.Timestamp) > time.Second {
		t.Fatalf("expected recent timestamp, got %v", meta.Timestamp)
	}
}

func TestMuxNeverDropsStatusEvents(t *testing.T) {
	mux := New(1)
	src := make(chan engine.Event)
	mux.Add(src)

	statuses := []engine.Status{engine.StatusStarting, engine.StatusRunning, engine.StatusStopping, engine.StatusStopped}
	go func() {
		for _, status := range statuses {
			src <- engine.Event{Process: "api", Type: engine.EventTypeStatus, Status: status}
		}
		close(src)
	}()
	go mux.Close()

	var got []engine.Status
	for evt := range mux.Output() {
		got = append(got, evt.Status)
		// Slow consumer.
		time.Sleep(5 * time.Millisecond)
	}
	if len(got) != len(statuses) {
		t.Fatalf("expected %d status events, got %v", len(statuses), got)
	}
	for i := range statuses {
		if got[i] != statuses[i] {
			t.Fatalf("status %d: got %s want %s", i, got[i], statuses[i])
		}
	}
}
