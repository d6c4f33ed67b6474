// Package config manages finsync client configuration and the .finsync
// directory. It handles loading, saving, and initializing the client state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	Dir           = ".finsync"
	ConfigFile    = "config"
	DatabaseFile  = "local.db"
	WatermarkFile = "last_pull_ts"
	LogFile       = "finsync.log"
)

// Environment variables that override the file.
const (
	EnvRemoteURL = "FINSYNC_REMOTE_URL"
	EnvToken     = "FINSYNC_TOKEN"
)

const (
	DefaultSyncInterval   = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryInterval  = 2 * time.Second
)

// Duration is a time.Duration written as "60s" in the config file
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

// Config represents the client configuration
type Config struct {
	RemoteURL      string   `toml:"remote_url"`
	Token          string   `toml:"token,omitempty"`
	UserID         int64    `toml:"user_id,omitempty"` // default push scope, 0 pushes everything
	SyncInterval   Duration `toml:"sync_interval"`
	RequestTimeout Duration `toml:"request_timeout"`
	Retries        int      `toml:"retries"`
	RetryInterval  Duration `toml:"retry_interval"`
	PushMaxBytes   int64    `toml:"push_max_bytes,omitempty"` // body limit per push request, 0 uses the default
	Database       string   `toml:"database,omitempty"`       // relative to the project directory
	WatermarkFile  string   `toml:"watermark_file,omitempty"` // relative to the project directory
	LogLevel       string   `toml:"log_level"`
	LogFormat      string   `toml:"log_format"`
	LogFile        string   `toml:"log_file,omitempty"` // daemon log, rotated
	path           string   // path to .finsync directory
}

// Default returns a configuration with every default filled in
func Default() *Config {
	return &Config{
		SyncInterval:   Duration{DefaultSyncInterval},
		RequestTimeout: Duration{DefaultRequestTimeout},
		RetryInterval:  Duration{DefaultRetryInterval},
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// FindRoot finds the .finsync directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		p := filepath.Join(dir, Dir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a finsync directory (or any parent up to root)")
		}
		dir = parent
	}
}

// Load finds and loads the configuration, then applies environment overrides
func Load() (*Config, error) {
	p, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(p)
}

// LoadFrom loads the configuration stored in the given .finsync directory
func LoadFrom(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.RemoteURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}

	cfg.path = dir
	return cfg, cfg.Validate()
}

// Validate rejects values the sync core cannot run with
func (c *Config) Validate() error {
	if c.SyncInterval.Duration <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.PushMaxBytes < 0 {
		return fmt.Errorf("push_max_bytes must not be negative")
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The token is a credential.
	return os.WriteFile(configPath, data, 0600)
}

// Path returns the path to the .finsync directory
func (c *Config) Path() string {
	return c.path
}

func (c *Config) resolve(name, fallback string) string {
	if name == "" {
		return filepath.Join(c.path, fallback)
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(c.path), name)
}

// DatabasePath returns the local SQLite file
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database, DatabaseFile)
}

// WatermarkPath returns the pull watermark state file
func (c *Config) WatermarkPath() string {
	return c.resolve(c.WatermarkFile, WatermarkFile)
}

// LogPath returns the daemon log file
func (c *Config) LogPath() string {
	return c.resolve(c.LogFile, LogFile)
}

// Initialize creates a new .finsync directory in dir with initial configuration
func Initialize(dir, remoteURL string) (*Config, error) {
	p := filepath.Join(dir, Dir)

	// Check if already initialized
	if _, err := os.Stat(p); err == nil {
		return nil, fmt.Errorf("finsync directory already exists")
	}

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	cfg := Default()
	cfg.RemoteURL = remoteURL
	cfg.path = p

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(p)
		return nil, err
	}

	return cfg, nil
}
