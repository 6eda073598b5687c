// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all airscope configuration.
type Config struct {
	Gateway Gateway `yaml:"gateway"`
	Log     Log     `yaml:"log"`
}

// Gateway holds remote data gateway connection settings.
type Gateway struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`    // Per-request timeout
	RateLimit float64       `yaml:"rate_limit"` // Requests per second; 0 disables
	Burst     int           `yaml:"burst"`
}

// Log holds log file settings. The dashboard owns the terminal, so logs
// are only ever written to a file.
type Log struct {
	Path       string `yaml:"path"` // Empty disables logging
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Gateway: Gateway{
			BaseURL:   "http://localhost:8000",
			Timeout:   30 * time.Second,
			RateLimit: 10,
			Burst:     5,
		},
		Log: Log{
			Path:       DefaultLogPath(),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// DefaultLogPath returns airscope.log under the user's cache directory,
// or an empty path (logging off) when that directory cannot be determined.
func DefaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "airscope", "airscope.log")
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// validLevels are the log levels accepted by log.level.
var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("config: gateway.base_url cannot be empty")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: gateway.base_url must be an absolute URL, got %q", c.Gateway.BaseURL)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("config: gateway.timeout must be positive, got %v", c.Gateway.Timeout)
	}
	if c.Gateway.RateLimit < 0 {
		return fmt.Errorf("config: gateway.rate_limit must be non-negative, got %v", c.Gateway.RateLimit)
	}
	if c.Gateway.Burst < 0 {
		return fmt.Errorf("config: gateway.burst must be non-negative, got %d", c.Gateway.Burst)
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("config: log rotation settings must be non-negative")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: AIRSCOPE_API_URL, AIRSCOPE_TIMEOUT, AIRSCOPE_RATE_LIMIT,
// AIRSCOPE_LOG_PATH, AIRSCOPE_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("AIRSCOPE_API_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("AIRSCOPE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid AIRSCOPE_TIMEOUT %q: %w", v, err)
		}
		c.Gateway.Timeout = d
	}
	if v := os.Getenv("AIRSCOPE_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid AIRSCOPE_RATE_LIMIT %q: %w", v, err)
		}
		c.Gateway.RateLimit = r
	}
	if v, ok := os.LookupEnv("AIRSCOPE_LOG_PATH"); ok {
		// Set-but-empty disables logging.
		c.Log.Path = v
	}
	if v := os.Getenv("AIRSCOPE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Gateway *rawGateway `yaml:"gateway"`
	Log     *rawLog     `yaml:"log"`
}

type rawGateway struct {
	BaseURL   *string        `yaml:"base_url"`
	Timeout   *time.Duration `yaml:"timeout"`
	RateLimit *float64       `yaml:"rate_limit"`
	Burst     *int           `yaml:"burst"`
}

type rawLog struct {
	Path       *string `yaml:"path"`
	Level      *string `yaml:"level"`
	MaxSizeMB  *int    `yaml:"max_size_mb"`
	MaxBackups *int    `yaml:"max_backups"`
	MaxAgeDays *int    `yaml:"max_age_days"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if g := layer.Gateway; g != nil {
		if g.BaseURL != nil {
			c.Gateway.BaseURL = *g.BaseURL
		}
		if g.Timeout != nil {
			c.Gateway.Timeout = *g.Timeout
		}
		if g.RateLimit != nil {
			c.Gateway.RateLimit = *g.RateLimit
		}
		if g.Burst != nil {
			c.Gateway.Burst = *g.Burst
		}
	}
	if l := layer.Log; l != nil {
		if l.Path != nil {
			c.Log.Path = *l.Path
		}
		if l.Level != nil {
			c.Log.Level = *l.Level
		}
		if l.MaxSizeMB != nil {
			c.Log.MaxSizeMB = *l.MaxSizeMB
		}
		if l.MaxBackups != nil {
			c.Log.MaxBackups = *l.MaxBackups
		}
		if l.MaxAgeDays != nil {
			c.Log.MaxAgeDays = *l.MaxAgeDays
		}
	}
}
