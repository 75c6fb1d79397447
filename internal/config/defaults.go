package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default value constants.
const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxBodySize     = 8 << 20

	DefaultBatchWorkers = 4

	DefaultMetricsNamespace = "molmatch"
	DefaultMetricsSubsystem = "substruct"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// Fields already set by the caller are left unchanged.  Booleans are not
// touched because false is a valid explicit value; their defaults are
// registered with viper by setViperDefaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}

	// ── Batch ─────────────────────────────────────────────────────────────────
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = DefaultBatchWorkers
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// Default returns a Config with every default applied, including the
// boolean ones ApplyDefaults cannot infer.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Search.ForwardChecking = true
	cfg.Search.CheckCharge = true
	cfg.Search.CheckIsotope = true
	cfg.Search.CheckAromatic = true
	cfg.Metrics.Enabled = true
	return cfg
}

// setViperDefaults registers every key with v.  Registration also lets
// AutomaticEnv resolve MOLMATCH_* variables for keys absent from the file.
func setViperDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("search.max_mappings", d.Search.MaxMappings)
	v.SetDefault("search.unique_only", d.Search.UniqueOnly)
	v.SetDefault("search.exists_only", d.Search.ExistsOnly)
	v.SetDefault("search.forward_checking", d.Search.ForwardChecking)
	v.SetDefault("search.enabled_roles", []string{})
	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.check_charge", d.Search.CheckCharge)
	v.SetDefault("search.check_isotope", d.Search.CheckIsotope)
	v.SetDefault("search.check_aromatic", d.Search.CheckAromatic)
	v.SetDefault("search.check_atom_maps", d.Search.CheckAtomMaps)

	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.fail_fast", d.Batch.FailFast)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.subsystem", d.Metrics.Subsystem)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", []string{"stdout"})
}
