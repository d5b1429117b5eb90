package cli

import (
	"bytes"
	stdcontext "context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests require a POSIX shell")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server_configs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, ctx stdcontext.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd, _ := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}
