//go:build windows

package config

func pythonExecutable() string { return "python" }
