package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values fall back to environment
// variables or CLI flags.
type Config struct {
	DatabaseURL     string `json:"database_url,omitempty"`     // PostgreSQL connection URL
	ExecutorBaseURL string `json:"executor_base_url,omitempty"` // Stage worker endpoint prefix
	ServiceToken    string `json:"service_token,omitempty"`    // Coordinator credential for workers
	Port            int    `json:"port,omitempty"`             // HTTP listen port
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This applies config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ExecutorBaseURL == "" {
		result.ExecutorBaseURL = defaults.ExecutorBaseURL
	}
	if result.ServiceToken == "" {
		result.ServiceToken = defaults.ServiceToken
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	return result
}
