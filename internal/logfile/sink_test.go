package logfile

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "api", want: "api"},
		{in: `a/b\c:d*e?f"g<h>i|j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{in: "Python HTTP (Dummy Go)", want: "Python HTTP (Dummy Go)"},
		{in: "tab\tname", want: "tab_name"},
		{in: "..", want: "_.."},
		{in: "", want: "_"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogPathStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	first := LogPath(dir, "web/app")
	second := LogPath(dir, "web/app")
	if first != second {
		t.Fatalf("expected stable path, got %q and %q", first, second)
	}
	if filepath.Base(first) != "web_app.log" {
		t.Fatalf("unexpected file name %q", filepath.Base(first))
	}
	if got := LogPath("", "x"); got != filepath.Join(DefaultDirectory, "x.log") {
		t.Fatalf("unexpected default path %q", got)
	}
}

func TestSinkAppendsAcrossRuns(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	for _, line := range []string{"first run", "second run"} {
		sink, err := OpenSink(dir, "svc")
		if err != nil {
			t.Fatalf("OpenSink: %v", err)
		}
		if err := sink.WriteLine(line + "\n"); err != nil {
			t.Fatalf("WriteLine: %v", err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(LogPath(dir, "svc"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := string(data); got != "first run\nsecond run\n" {
		t.Fatalf("unexpected log contents %q", got)
	}
}

func TestSinkCloseIdempotent(t *testing.T) {
	sink, err := OpenSink(t.TempDir(), "svc")
	if err != nil {
		t.Fatalf("OpenSink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !sink.Closed() {
		t.Fatalf("expected sink to report closed")
	}
	if err := sink.WriteLine("late"); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}

	var nilSink *Sink
	if err := nilSink.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if err := nilSink.WriteLine("x"); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed from nil sink, got %v", err)
	}
}

func TestSinkConcurrentWritersKeepWholeLines(t *testing.T) {
	dir := t.TempDir()
	sink, err := OpenSink(dir, "svc")
	if err != nil {
		t.Fatalf("OpenSink: %v", err)
	}

	var wg sync.WaitGroup
	for _, prefix := range []string{"out", "err"} {
		wg.Add(1)
		go func(prefix string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = sink.WriteLine(prefix + strings.Repeat("x", 64))
			}
		}(prefix)
	}
	wg.Wait()
	_ = sink.Close()

	data, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line != "out"+strings.Repeat("x", 64) && line != "err"+strings.Repeat("x", 64) {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestOpenSinkFailsOnUnwritableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission semantics differ on windows")
	}
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenSink(filepath.Join(blocker, "logs"), "svc"); err == nil {
		t.Fatalf("expected error when log directory cannot be created")
	}
}
