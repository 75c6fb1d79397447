// Package config defines the molmatch configuration structures and their
// validation.  Loading lives in loader.go and defaults in defaults.go.
package config

import (
	"fmt"
	"strings"
	"time"

	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SearchConfig holds the matching defaults applied to every request.
type SearchConfig struct {
	MaxMappings     int      `mapstructure:"max_mappings"` // 0 = unlimited
	UniqueOnly      bool     `mapstructure:"unique_only"`
	ExistsOnly      bool     `mapstructure:"exists_only"`
	ForwardChecking bool     `mapstructure:"forward_checking"`
	EnabledRoles    []string `mapstructure:"enabled_roles"`

	// Timeout bounds one query/target search; 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	CheckCharge   bool `mapstructure:"check_charge"`
	CheckIsotope  bool `mapstructure:"check_isotope"`
	CheckAromatic bool `mapstructure:"check_aromatic"`
	CheckAtomMaps bool `mapstructure:"check_atom_maps"`
}

// BatchConfig holds batch execution parameters.
type BatchConfig struct {
	Workers  int  `mapstructure:"workers"`
	FailFast bool `mapstructure:"fail_fast"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Search  SearchConfig  `mapstructure:"search"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("config: server timeouts must not be negative")
	}

	// Search
	if c.Search.MaxMappings < 0 {
		return fmt.Errorf("config: search.max_mappings must be ≥ 0, got %d", c.Search.MaxMappings)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("config: search.timeout must be ≥ 0, got %s", c.Search.Timeout)
	}
	if err := validateRoles(c.Search.EnabledRoles); err != nil {
		return err
	}

	// Batch
	if c.Batch.Workers < 1 {
		return fmt.Errorf("config: batch.workers must be ≥ 1, got %d", c.Batch.Workers)
	}

	// Metrics
	if c.Metrics.Enabled {
		if c.Metrics.Namespace == "" {
			return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("config: metrics.path %q must start with /", c.Metrics.Path)
		}
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// validateRoles accepts role names, "all" and comma-separated lists of
// both.  At least one role must remain enabled.
func validateRoles(names []string) error {
	if len(names) == 0 {
		return nil
	}
	n := 0
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !strings.EqualFold(part, "all") && !mtypes.RoleName(part).IsValid() {
				return fmt.Errorf("config: search.enabled_roles contains unknown role %q", part)
			}
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("config: search.enabled_roles must name at least one role")
	}
	return nil
}
