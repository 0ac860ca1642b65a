// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Backend types
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

// Defaults
const (
	DefaultItemLatency  = 800 * time.Millisecond
	DefaultRESTTimeout  = 10 * time.Second
	DefaultRESTResource = "items"
	DefaultRESTRetries  = 0
	DefaultServerAddr   = "127.0.0.1:8080"
)

// Config represents the application configuration
type Config struct {
	Backend      BackendConfig `yaml:"backend"`
	Auth         AuthConfig    `yaml:"auth"`
	Storage      StorageConfig `yaml:"storage"`
	Server       ServerConfig  `yaml:"server"`
	OutputFormat string        `yaml:"output_format"`
	Logging      LoggingConfig `yaml:"logging"`
}

// BackendConfig selects and configures the item store
type BackendConfig struct {
	Type          string       `yaml:"type"`
	Latency       string       `yaml:"latency"` // e.g. "800ms"; "0s" disables
	SeedDemoItems *bool        `yaml:"seed_demo_items"`
	SQLite        SQLiteConfig `yaml:"sqlite"`
	REST          RESTConfig   `yaml:"rest"`
}

// SQLiteConfig holds SQLite item store configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RESTConfig holds remote item API configuration
type RESTConfig struct {
	BaseURL    string `yaml:"base_url"`
	Resource   string `yaml:"resource"`
	Timeout    string `yaml:"timeout"`
	UseKeyring *bool  `yaml:"use_keyring"`
	MaxRetries *int   `yaml:"max_retries"` // retries after a 429; 0 disables
}

// AuthConfig holds session store settings
type AuthConfig struct {
	SeedDemoAccount *bool         `yaml:"seed_demo_account"`
	Latency         LatencyConfig `yaml:"latency"`
}

// LatencyConfig holds the simulated delay of each session operation
type LatencyConfig struct {
	Login    string `yaml:"login"`
	Register string `yaml:"register"`
	Logout   string `yaml:"logout"`
	Reset    string `yaml:"reset"`
}

// StorageConfig locates the key-value state file
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the mock API server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // Controls background log file creation (default: true)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.Backend.Type == "" {
		c.Backend.Type = BackendSQLite
	}
	if c.Backend.SQLite.Path == "" {
		c.Backend.SQLite.Path = filepath.Join(GetDataDir(), "items.db")
	}
	if c.Backend.REST.Resource == "" {
		c.Backend.REST.Resource = DefaultRESTResource
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(GetDataDir(), "state.db")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	c.Backend.SQLite.Path = ExpandPath(c.Backend.SQLite.Path)
	c.Storage.Path = ExpandPath(c.Storage.Path)
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the embedded sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads configuration from a specific path without creating it
func LoadFromPath(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// save writes the embedded sample config, with its comments, to path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.Backend.Type {
	case BackendMemory, BackendSQLite:
	case BackendREST:
		if c.Backend.REST.BaseURL == "" {
			return fmt.Errorf("backend.rest.base_url is required when backend.type is 'rest'")
		}
		u, err := url.Parse(c.Backend.REST.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid backend.rest.base_url: %q", c.Backend.REST.BaseURL)
		}
	default:
		return fmt.Errorf("unknown backend.type: %q (must be 'memory', 'sqlite' or 'rest')", c.Backend.Type)
	}

	durations := map[string]string{
		"backend.latency":       c.Backend.Latency,
		"backend.rest.timeout":  c.Backend.REST.Timeout,
		"auth.latency.login":    c.Auth.Latency.Login,
		"auth.latency.register": c.Auth.Latency.Register,
		"auth.latency.logout":   c.Auth.Latency.Logout,
		"auth.latency.reset":    c.Auth.Latency.Reset,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %q", key, value)
		}
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(verbose bool, outputFormat string) {
	if verbose {
		c.Logging.Verbose = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// parseDuration returns the parsed value, or def when unset or invalid
func parseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// GetItemLatency returns the simulated item store latency.
// Returns 800ms (default) if not configured.
func (c *Config) GetItemLatency() time.Duration {
	return parseDuration(c.Backend.Latency, DefaultItemLatency)
}

// ShouldSeedDemoItems returns true if the memory store starts with the demo tasks
func (c *Config) ShouldSeedDemoItems() bool {
	return c.Backend.SeedDemoItems == nil || *c.Backend.SeedDemoItems
}

// GetRESTTimeout returns the remote API request timeout.
// Returns 10s (default) if not configured.
func (c *Config) GetRESTTimeout() time.Duration {
	return parseDuration(c.Backend.REST.Timeout, DefaultRESTTimeout)
}

// IsRESTKeyringEnabled returns true if the REST token is read from the keyring
func (c *Config) IsRESTKeyringEnabled() bool {
	return c.Backend.REST.UseKeyring == nil || *c.Backend.REST.UseKeyring
}

// GetRESTMaxRetries returns how often a rate-limited request is retried
func (c *Config) GetRESTMaxRetries() int {
	if c.Backend.REST.MaxRetries == nil || *c.Backend.REST.MaxRetries < 0 {
		return DefaultRESTRetries
	}
	return *c.Backend.REST.MaxRetries
}

// ShouldSeedDemoAccount returns true if the demo account is registered on startup
func (c *Config) ShouldSeedDemoAccount() bool {
	return c.Auth.SeedDemoAccount == nil || *c.Auth.SeedDemoAccount
}

// AuthLatencies returns the login, register, logout and reset delays,
// falling back to 1s, 1.5s, 200ms and 1s.
func (c *Config) AuthLatencies() (login, register, logout, reset time.Duration) {
	return parseDuration(c.Auth.Latency.Login, time.Second),
		parseDuration(c.Auth.Latency.Register, 1500*time.Millisecond),
		parseDuration(c.Auth.Latency.Logout, 200*time.Millisecond),
		parseDuration(c.Auth.Latency.Reset, time.Second)
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Background logging creates PID-specific log files in the temp directory.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "taskpad")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "taskpad")
	}
	return filepath.Join(home, fallbackPath, "taskpad")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
