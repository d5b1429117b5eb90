package process

import (
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/devdock/internal/launch"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}
}

func TestSpawnCapturesStdoutAndStderr(t *testing.T) {
	skipOnWindows(t)

	child, err := Spawn(Options{Spec: launch.Spec{Mode: launch.ModeShell, Command: "echo out; echo err 1>&2"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if child.PID() <= 0 {
		t.Fatalf("expected pid, got %d", child.PID())
	}

	stdout, err := io.ReadAll(child.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	stderr, err := io.ReadAll(child.Stderr())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	if err := child.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	child.CloseOutput()

	if strings.TrimSpace(string(stdout)) != "out" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if strings.TrimSpace(string(stderr)) != "err" {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestSpawnHonoursWorkingDirAndEnv(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	child, err := Spawn(Options{
		Spec: launch.Spec{Mode: launch.ModeShell, Command: `pwd; echo "$DEVDOCK_TEST"`, WorkingDir: dir},
		Env:  map[string]string{"DEVDOCK_TEST": "value"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	out, _ := io.ReadAll(child.Stdout())
	_ = child.Wait()
	child.CloseOutput()

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", out)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if lines[0] != dir && lines[0] != resolved {
		t.Fatalf("expected working dir %s, got %s", dir, lines[0])
	}
	if lines[1] != "value" {
		t.Fatalf("expected env value, got %q", lines[1])
	}
}

func TestSpawnMissingExecutable(t *testing.T) {
	_, err := Spawn(Options{Spec: launch.Spec{Mode: launch.ModeExec, Command: "devdock-definitely-missing-binary", Args: []string{"x"}}})
	if err == nil {
		t.Fatalf("expected spawn error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSpawnMissingWorkingDirIsNotFound(t *testing.T) {
	skipOnWindows(t)

	_, err := Spawn(Options{Spec: launch.Spec{Command: "true", WorkingDir: filepath.Join(t.TempDir(), "missing")}})
	if err == nil {
		t.Fatalf("expected spawn error for missing working dir")
	}
}

func TestTerminateThenKillEndsIgnoringChild(t *testing.T) {
	skipOnWindows(t)

	child, err := Spawn(Options{Spec: launch.Spec{Command: `trap "" TERM; echo ready; while :; do sleep 0.1; done`}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	buf := make([]byte, 16)
	if _, err := child.Stdout().Read(buf); err != nil {
		t.Fatalf("read ready: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- child.Wait() }()

	if err := child.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-done:
		t.Fatalf("child exited despite ignoring SIGTERM")
	case <-time.After(300 * time.Millisecond):
	}

	if err := child.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("expected exit error, got %v", err)
		}
		if exitErr.ExitCode() != -1 {
			t.Fatalf("expected signal exit, got code %d", exitErr.ExitCode())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("child did not exit after kill")
	}
	child.CloseOutput()
	child.CloseOutput()
}

func TestSignalsAfterWaitAreSkipped(t *testing.T) {
	skipOnWindows(t)

	child, err := Spawn(Options{Spec: launch.Spec{Mode: launch.ModeShell, Command: "exit 0"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := child.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	child.CloseOutput()

	if !child.Exited() {
		t.Fatalf("expected child to report exited after Wait")
	}
	if err := child.Terminate(); err != nil {
		t.Fatalf("Terminate after Wait: %v", err)
	}
	if err := child.Kill(); err != nil {
		t.Fatalf("Kill after Wait: %v", err)
	}
}
