// Package config loads the YAML configuration file for the treasury tool.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names the persistence implementations
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds runtime configuration. Zero values fall back to Default.
type Config struct {
	// Backend selects the store: "firestore" or "sqlite"
	Backend string `yaml:"backend"`

	// ProjectID is the GCP project for the Firestore backend
	ProjectID string `yaml:"project_id"`

	// Credentials optionally points at a service account file; empty
	// means Application Default Credentials
	Credentials string `yaml:"credentials"`

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `yaml:"sqlite_path"`

	// Port is the HTTP listen port in server mode
	Port int `yaml:"port"`

	// RulesFile optionally overrides the embedded classification rules
	RulesFile string `yaml:"rules_file"`

	// Strict makes row-level parse errors abort imports
	Strict bool `yaml:"strict"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backend:    BackendSQLite,
		SQLitePath: "treasury.db",
		Port:       8080,
	}
}

// Load reads a YAML config file and applies defaults to unset fields
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("firestore backend requires project_id")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite backend requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Backend, BackendFirestore, BackendSQLite)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1,65535], got %d", c.Port)
	}
	return nil
}
