// Package manifest handles ellapad.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "ellapad.toml"

// Defaults used when the manifest leaves a value unset.
const (
	DefaultAddr      = ":4567"
	DefaultQueue     = 16
	DefaultVerbosity = 1
	DefaultDatabase  = "ellapad.db"
)

// MemoryDatabase keeps the example catalog in memory.
const MemoryDatabase = ":memory:"

// Manifest represents an ellapad.toml configuration.
type Manifest struct {
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Examples ExamplesConfig `toml:"examples"`

	// Dir is the directory containing the ellapad.toml file (set at load
	// time). Relative paths are resolved against it.
	Dir string `toml:"-"`
}

// ServerConfig configures the playground server.
type ServerConfig struct {
	Addr  string `toml:"addr"`
	Queue int    `toml:"queue"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity *int   `toml:"verbosity"`
	Path      string `toml:"path"`
}

// ExamplesConfig configures the example catalog.
type ExamplesConfig struct {
	Database string `toml:"database"`
	Seed     string `toml:"seed"`
}

// Default returns the configuration used when no ellapad.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses an ellapad.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if m.Server.Queue < 0 {
		return nil, fmt.Errorf("%s: server.queue must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.Queue == 0 {
		m.Server.Queue = DefaultQueue
	}
	if m.Log.Verbosity == nil {
		v := DefaultVerbosity
		m.Log.Verbosity = &v
	}
	if m.Examples.Database == "" {
		m.Examples.Database = DefaultDatabase
	}
}

// FindAndLoad walks up from startDir to find an ellapad.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Verbosity returns the configured log verbosity.
func (m *Manifest) Verbosity() int {
	if m.Log.Verbosity == nil {
		return DefaultVerbosity
	}
	return *m.Log.Verbosity
}

// LogPath returns the absolute log file path, or nil for stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.Path == "" {
		return nil
	}
	path := m.resolve(m.Log.Path)
	return &path
}

// DatabasePath returns the catalog database path. MemoryDatabase is
// returned unchanged.
func (m *Manifest) DatabasePath() string {
	if m.Examples.Database == MemoryDatabase {
		return MemoryDatabase
	}
	return m.resolve(m.Examples.Database)
}

// SeedPath returns the seed file path, or "" for the embedded seed.
func (m *Manifest) SeedPath() string {
	if m.Examples.Seed == "" {
		return ""
	}
	return m.resolve(m.Examples.Seed)
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.Dir == "" {
		return path
	}
	return filepath.Join(m.Dir, path)
}
