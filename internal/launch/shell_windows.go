//go:build windows

package launch

import "os"

func shellArgv(command string) []string {
	shell := os.Getenv("ComSpec")
	if shell == "" {
		shell = "cmd.exe"
	}
	return []string{shell, "/C", command}
}

func pythonExecutable() string {
	return "python"
}
