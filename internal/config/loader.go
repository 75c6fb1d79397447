package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "MOLMATCH"

// defaultConfigName is the file base name looked up by FindConfigFile.
const defaultConfigName = "molmatch"

// Sentinel errors returned (wrapped) by Load.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigParseError   = errors.New("config file could not be parsed")
	ErrConfigValidation   = errors.New("config validation failed")
)

var (
	globalMu sync.RWMutex
	global   *Config
)

// Get returns the Config most recently produced by Load, or nil.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

type loadOptions struct {
	path      string
	overrides map[string]interface{}
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithConfigPath reads exactly the file at path.
func WithConfigPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithOverrides sets keys (dotted, e.g. "batch.workers") with the highest
// precedence.
func WithOverrides(values map[string]interface{}) LoadOption {
	return func(o *loadOptions) { o.overrides = values }
}

// newViper builds a Viper instance with YAML file type, the MOLMATCH_ env
// prefix and a key replacer mapping "search.max_mappings" to
// MOLMATCH_SEARCH_MAX_MAPPINGS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	return v
}

// Load builds a Config from defaults, an optional YAML file, MOLMATCH_*
// environment variables and explicit overrides, in increasing precedence.
// Without a path only defaults and the environment are used.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := newViper()
	if o.path != "" {
		v.SetConfigFile(o.path)
		if err := readConfig(v); err != nil {
			return nil, err
		}
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}

	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	global = cfg
	globalMu.Unlock()
	return cfg, nil
}

// FindConfigFile returns the first molmatch.yaml or molmatch.yml found in
// dirs, in order.
func FindConfigFile(dirs ...string) (string, error) {
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			p := filepath.Join(dir, defaultConfigName+ext)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("config: %w: searched %s", ErrConfigFileNotFound, strings.Join(dirs, ", "))
}

// LoadFromFile is Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from defaults and MOLMATCH_* variables only.
//
//	MOLMATCH_<SECTION>_<FIELD>   e.g.  MOLMATCH_BATCH_WORKERS=8
func LoadFromEnv() (*Config, error) {
	return Load()
}

// MustLoad is Load that panics on error.  For main() only.
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: %w: %v", ErrConfigFileNotFound, err)
	}
	return fmt.Errorf("config: %w: %v", ErrConfigParseError, err)
}

// unmarshalAndFinalize unmarshals viper state, applies defaults and
// validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w: %v", ErrConfigParseError, err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// Watch re-reads the file at path whenever it changes and passes the new
// Config to onChange.  A change that fails to parse or validate is reported
// to onError (if non-nil) and onChange is not called.  Only settings that
// are safe to swap at runtime, such as search defaults and log level, should
// be applied by the callback.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := readConfig(v); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("config: reload of %s after %s: %w", e.Name, e.Op, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
