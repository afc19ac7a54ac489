// Package config loads furrow settings from defaults, an optional YAML file and
// FURROW_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. FURROW_STORE_DSN.
const EnvPrefix = "FURROW_"

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the complete furrow configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store" yaml:"store"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
	Paging  PagingConfig  `koanf:"paging" yaml:"paging"`
	Service ServiceConfig `koanf:"service" yaml:"service"`
}

// StoreConfig selects and tunes the backend.
type StoreConfig struct {
	Backend         string        `koanf:"backend" yaml:"backend" validate:"oneof=memory sqlite postgres"`
	DSN             string        `koanf:"dsn" yaml:"dsn" validate:"required_unless=Backend memory"`
	ReadOnly        bool          `koanf:"read_only" yaml:"read_only"`
	Migrate         bool          `koanf:"migrate" yaml:"migrate"`
	MaxOpenConns    int           `koanf:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" yaml:"conn_max_lifetime" validate:"gte=0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=text json pretty"`
}

// PagingConfig bounds list pages and sets the base of page links.
type PagingConfig struct {
	DefaultSize int    `koanf:"default_size" yaml:"default_size" validate:"gte=1"`
	MaxSize     int    `koanf:"max_size" yaml:"max_size" validate:"gtefield=DefaultSize"`
	BaseURL     string `koanf:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

// ServiceConfig enables the built-in service interceptors.
type ServiceConfig struct {
	Metrics bool `koanf:"metrics" yaml:"metrics"`
	// LogOperations logs every call whose "<Entity>/<Operation>" path matches.
	LogOperations string `koanf:"log_operations" yaml:"log_operations"`
}

// Default returns the built-in configuration: an in-memory store and text logs.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Paging: PagingConfig{
			DefaultSize: 10,
			MaxSize:     100,
			BaseURL:     "http://localhost/",
		},
	}
}

// Load builds the configuration. An empty path skips the file; a missing file
// is an error.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		data, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

// transformEnvKey maps FURROW_STORE_MAX_OPEN_CONNS to store.max_open_conns: the
// first segment is the section, the rest is the field.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key, value
	}
	return section + "." + field, value
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// rawMap is a koanf.Provider for already parsed data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("ReadBytes not implemented")
}
