package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the config file inside the repository root.
const FileName = "config.toml"

// Defaults applied to sections left empty in the file.
const (
	DefaultMetadataType = "sqlite"
	DefaultHostType     = "bridge"
	DefaultBridgeURL    = "http://127.0.0.1:8731"
	DefaultLogLevel     = "info"
)

// Config is the per-repository configuration.
type Config struct {
	// Author is recorded on every commit. Empty means the OS user.
	Author   string         `toml:"author"`
	Metadata MetadataConfig `toml:"metadata"`
	Host     HostConfig     `toml:"host"`
	Log      LogConfig      `toml:"log"`
}

// MetadataConfig selects the metadata store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MetadataConfig struct {
	Type string `toml:"type"` // "sqlite", "json", "badger" or "memory"
}

// HostConfig selects the document host adapter.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HostConfig struct {
	Type string `toml:"type"` // "bridge", "file" or "none"

	// Bridge-specific fields (only used when Type == "bridge")
	BridgeURL string `toml:"bridge_url,omitempty"`
	// TimeoutSeconds bounds each bridge call. Zero waits indefinitely.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// File-specific fields (only used when Type == "file")
	WorkingFile string `toml:"working_file,omitempty"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn" or "error"
	// Dir holds log files. Empty means <root>/log.
	Dir string `toml:"dir,omitempty"`
}

// NewConfig returns a Config with every default filled in.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Metadata.Type == "" {
		c.Metadata.Type = DefaultMetadataType
	}
	if c.Host.Type == "" {
		c.Host.Type = DefaultHostType
	}
	if c.Host.Type == "bridge" && c.Host.BridgeURL == "" {
		c.Host.BridgeURL = DefaultBridgeURL
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Metadata.Type {
	case "sqlite", "json", "badger", "memory":
	default:
		return fmt.Errorf("unknown metadata type: %s", c.Metadata.Type)
	}
	switch c.Host.Type {
	case "bridge", "file", "none":
	default:
		return fmt.Errorf("unknown host type: %s", c.Host.Type)
	}
	if c.Host.TimeoutSeconds < 0 {
		return fmt.Errorf("host.timeout_seconds must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// Path returns the config file location for a repository root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and fills in defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path, returning defaults when the file does not exist.
func Load(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewConfig(), nil
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
