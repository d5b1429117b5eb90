package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "server_configs.json"

// Format identifies the on-disk encoding of a configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the encoding from the file extension. Unknown extensions
// are treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Store reads and writes the process configuration file. It remembers the
// digest of the last content it read or wrote so file watchers can ignore
// its own writes.
type Store struct {
	path   string
	format Format

	mu     sync.Mutex
	digest [sha256.Size]byte
}

// NewStore returns a store bound to path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, format: FormatFor(path)}
}

// Path returns the configuration file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads, schema-checks and validates the configuration file. A missing
// file yields an error wrapping fs.ErrNotExist. An empty file yields no
// records.
func (s *Store) Load() ([]Process, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", s.path, err)
	}
	procs, err := Decode(data, s.format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.remember(data)
	return procs, nil
}

// LoadOrSeed loads the configuration, writing Defaults when the file is
// missing or holds no records. It reports whether defaults were seeded.
func (s *Store) LoadOrSeed() ([]Process, bool, error) {
	procs, err := s.Load()
	switch {
	case err == nil && len(procs) > 0:
		return procs, false, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		defaults := Defaults()
		if err := s.Save(defaults); err != nil {
			return nil, false, err
		}
		return defaults, true, nil
	default:
		return nil, false, err
	}
}

// Save validates and atomically replaces the configuration file.
func (s *Store) Save(procs []Process) error {
	if err := Validate(procs); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	data, err := Encode(procs, s.format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace config %s: %w", s.path, err)
	}
	s.remember(data)
	return nil
}

// Changed reports whether the file content differs from what the store last
// read or wrote.
func (s *Store) Changed() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read config %s: %w", s.path, err)
	}
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum != s.digest, nil
}

func (s *Store) remember(data []byte) {
	sum := sha256.Sum256(data)
	s.mu.Lock()
	s.digest = sum
	s.mu.Unlock()
}

// Decode parses a configuration document in the given format.
func Decode(data []byte, format Format) ([]Process, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if raw == nil {
		return nil, nil
	}
	if err := validateAgainstSchema(raw); err != nil {
		return nil, err
	}

	var procs []Process
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&procs); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &procs); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if err := Validate(procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// Encode renders records in the given format.
func Encode(procs []Process, format Format) ([]byte, error) {
	if procs == nil {
		procs = []Process{}
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(procs); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(procs, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
}
