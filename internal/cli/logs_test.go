package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Paintersrp/devdock/internal/desktop"
)

func swapOpener(t *testing.T) (*[]string, *[]string) {
	t.Helper()
	var urls, files []string
	orig := opener
	t.Cleanup(func() { opener = orig })
	opener = desktop.Opener{
		OpenURL: func(url string) error {
			urls = append(urls, url)
			return nil
		},
		OpenFile: func(path string) error {
			files = append(files, path)
			return nil
		},
	}
	return &urls, &files
}

func TestLogsPrintsLogFile(t *testing.T) {
	path := writeConfig(t, `[{"name": "web/api", "command": "date"}]`)
	logDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(logDir, "web_api.log"), []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	stdout, _, err := execute(t, nil, "--config", path, "--log-dir", logDir, "logs", "web/api")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if stdout != "line one\nline two\n" {
		t.Fatalf("unexpected logs output %q", stdout)
	}
}

func TestLogsMissingFile(t *testing.T) {
	path := writeConfig(t, `[{"name": "api", "command": "date"}]`)

	_, _, err := execute(t, nil, "--config", path, "--log-dir", t.TempDir(), "logs", "api")
	if !errors.Is(err, desktop.ErrLogNotFound) {
		t.Fatalf("expected log not found, got %v", err)
	}
}

func TestLogsOpenUsesDesktopViewer(t *testing.T) {
	_, files := swapOpener(t)
	path := writeConfig(t, `[{"name": "api", "command": "date"}]`)
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "api.log")
	if err := os.WriteFile(logPath, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	if _, _, err := execute(t, nil, "--config", path, "--log-dir", logDir, "logs", "--open", "api"); err != nil {
		t.Fatalf("logs --open: %v", err)
	}
	if len(*files) != 1 || (*files)[0] != logPath {
		t.Fatalf("unexpected opened files %v", *files)
	}
}

func TestOpenCommand(t *testing.T) {
	urls, _ := swapOpener(t)
	path := writeConfig(t, `[{"name": "web", "command": "date", "expected_port": 8081}, {"name": "worker", "command": "date"}]`)

	stdout, _, err := execute(t, nil, "--config", path, "--log-dir", t.TempDir(), "open", "web")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if stdout != "opened http://localhost:8081\n" {
		t.Fatalf("unexpected output %q", stdout)
	}
	if len(*urls) != 1 || (*urls)[0] != "http://localhost:8081" {
		t.Fatalf("unexpected browser launches %v", *urls)
	}

	_, _, err = execute(t, nil, "--config", path, "--log-dir", t.TempDir(), "open", "worker")
	if !errors.Is(err, desktop.ErrNoPort) {
		t.Fatalf("expected no port error, got %v", err)
	}
}
