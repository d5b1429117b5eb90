//go:build !windows

package launch

func shellArgv(command string) []string {
	return []string{"/bin/sh", "-c", command}
}

func pythonExecutable() string {
	return "python3"
}
