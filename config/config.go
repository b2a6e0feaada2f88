// Package config loads the client configuration from
// ~/.feedreader/config.yaml, with FEEDREADER_* environment variables taking
// precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings.
type Config struct {
	// ServerURL is the base URL of the feed service.
	ServerURL string `yaml:"server_url"`
	// PageSize is the number of articles requested per feed page.
	PageSize int `yaml:"page_size"`
	// TimeoutSeconds bounds each request to the service.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// CredentialsDSN is the path of the credential database.
	CredentialsDSN string `yaml:"credentials_dsn"`
}

// Default returns the configuration used when no file and no environment
// variables are present.
func Default() *Config {
	return &Config{
		ServerURL:      "http://localhost:8080",
		PageSize:       10,
		TimeoutSeconds: 15,
		CredentialsDSN: defaultCredentialsDSN(),
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load builds the effective configuration: defaults, overlaid with
// ~/.feedreader/config.yaml when it exists, overlaid with FEEDREADER_*
// environment variables.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(homeDir, ".feedreader", "config.yaml")
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if fileCfg != nil {
			cfg.merge(fileCfg)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFile loads configuration from the given path. Returns nil if the file
// doesn't exist (not an error). Returns an error if the file exists but
// cannot be parsed.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// merge copies the set fields of other over c.
func (c *Config) merge(other *Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.PageSize > 0 {
		c.PageSize = other.PageSize
	}
	if other.TimeoutSeconds > 0 {
		c.TimeoutSeconds = other.TimeoutSeconds
	}
	if other.CredentialsDSN != "" {
		c.CredentialsDSN = other.CredentialsDSN
	}
}

// applyEnv overrides fields from FEEDREADER_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("FEEDREADER_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("FEEDREADER_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PageSize = n
		}
	}
	if v := os.Getenv("FEEDREADER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("FEEDREADER_CREDENTIALS_DSN"); v != "" {
		c.CredentialsDSN = v
	}
}

// defaultCredentialsDSN places the credential database next to the config
// file. Falls back to the working directory if no home directory is known.
func defaultCredentialsDSN() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "credentials.db"
	}
	return filepath.Join(homeDir, ".feedreader", "credentials.db")
}
