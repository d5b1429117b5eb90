// Package logfile writes the per-process output log files.
package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultDirectory is the log directory used when none is configured.
const DefaultDirectory = "logs"

// ErrSinkClosed is returned by writes issued after Close.
var ErrSinkClosed = errors.New("log sink closed")

// Sink appends output lines of one process run to its log file. Writes and
// Close are serialized so a line is never split across a close.
type Sink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// SanitizeName replaces characters that are unsafe in file names, including
// control characters, with an underscore.
func SanitizeName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)
	if strings.Trim(sanitized, ". ") == "" {
		return "_" + sanitized
	}
	return sanitized
}

// LogPath returns the log file location for the named process. The path is
// stable across runs so restarts append to the same file.
func LogPath(dir, name string) string {
	if dir == "" {
		dir = DefaultDirectory
	}
	return filepath.Join(dir, SanitizeName(name)+".log")
}

// OpenSink creates dir when missing and opens the process log in append mode.
func OpenSink(dir, name string) (*Sink, error) {
	if dir == "" {
		dir = DefaultDirectory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}
	path := LogPath(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &Sink{path: path, file: file}, nil
}

// Path returns the log file location.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// WriteLine appends line followed by a single newline.
func (s *Sink) WriteLine(line string) error {
	if s == nil {
		return ErrSinkClosed
	}
	line = strings.TrimRight(line, "\r\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if _, err := s.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the file handle. Subsequent calls return nil.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
