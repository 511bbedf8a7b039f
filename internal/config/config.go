// Package config loads talpa's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/credentials"
	"github.com/alekspetrov/talpa/internal/lock"
	"github.com/alekspetrov/talpa/internal/logging"
)

// Config represents the main configuration
type Config struct {
	API         *APIConfig          `yaml:"api"`
	Credentials *credentials.Config `yaml:"credentials"`
	Lock        *lock.Config        `yaml:"lock"`
	Logging     *logging.Config     `yaml:"logging"`
}

// APIConfig holds Cloudflare API settings
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"` // 0 keeps the transport default
	RoutingDomain string        `yaml:"routing_domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: &APIConfig{
			BaseURL:       cloudflare.BaseURL,
			RoutingDomain: cloudflare.DefaultRoutingDomain,
		},
		Credentials: &credentials.Config{
			Backend: credentials.DefaultBackend(),
			Service: credentials.DefaultService,
			Path:    filepath.Join(Dir(), "credentials.db"),
		},
		Lock: &lock.Config{
			TTL: lock.DefaultTTL,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.fillDefaults()

	config.Credentials.Path = expandPath(config.Credentials.Path)
	if out := config.Logging.Output; out != "stdout" && out != "stderr" {
		config.Logging.Output = expandPath(out)
	}

	return config, nil
}

// fillDefaults restores sections a file cleared with an explicit null.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.API == nil {
		c.API = defaults.API
	}
	if c.Credentials == nil {
		c.Credentials = defaults.Credentials
	}
	if c.Lock == nil {
		c.Lock = defaults.Lock
	}
	if c.Logging == nil {
		c.Logging = defaults.Logging
	}
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Dir returns talpa's configuration directory, ~/.talpa.
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".talpa")
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API == nil {
		return fmt.Errorf("api configuration is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("invalid api.base_url %q: must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("invalid api.timeout: %s", c.API.Timeout)
	}

	if c.Credentials != nil {
		switch c.Credentials.Backend {
		case "", credentials.BackendKeychain, credentials.BackendEnv:
		case credentials.BackendSQLite:
			if c.Credentials.Path == "" {
				return fmt.Errorf("credentials.path is required for the sqlite backend")
			}
		default:
			return fmt.Errorf("invalid credentials.backend %q: must be one of keychain, sqlite, env", c.Credentials.Backend)
		}
	}

	if c.Lock != nil && c.Lock.RedisURL != "" && c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive when lock.redis_url is set")
	}

	if c.Logging != nil {
		switch c.Logging.Level {
		case "", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
		}
		switch c.Logging.Format {
		case "", "text", "json":
		default:
			return fmt.Errorf("invalid logging.format %q: must be text or json", c.Logging.Format)
		}
	}

	return nil
}
