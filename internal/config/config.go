package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kvbridge/internal/store"
)

// Environment variables that override the loaded configuration.
const (
	EnvSource    = "KVBRIDGE_SOURCE"
	EnvCodec     = "KVBRIDGE_CODEC"
	EnvLogLevel  = "KVBRIDGE_LOG_LEVEL"
	EnvLogFormat = "KVBRIDGE_LOG_FORMAT"
)

// Config is the root configuration structure.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// StorageConfig controls the database behind each connection.
type StorageConfig struct {
	Source      string `yaml:"source"`
	Codec       string `yaml:"codec"`
	BusyTimeout int    `yaml:"busy_timeout"`
	WAL         bool   `yaml:"wal"`
}

// BridgeConfig bounds what a single bridge operation may do.
type BridgeConfig struct {
	MaxBuffer        int64 `yaml:"max_buffer"`
	MaxCallbackDepth int   `yaml:"max_callback_depth"`
}

// Load reads configuration from path. An empty path skips the file and
// uses the defaults.
//
// Environment overrides are applied after the file, then the result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Storage: StorageConfig{
			Source:      "kvbridge.db",
			Codec:       store.CodecNone,
			BusyTimeout: 5000,
			WAL:         true,
		},
		Bridge: BridgeConfig{
			MaxBuffer:        1 << 30,
			MaxCallbackDepth: 64,
		},
	}
}

// applyEnvOverrides applies KVBRIDGE_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSource); v != "" {
		cfg.Storage.Source = v
	}
	if v := os.Getenv(EnvCodec); v != "" {
		cfg.Storage.Codec = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be stdout or stderr", c.Logging.Output))
	}

	if c.Storage.Source == "" {
		errs = append(errs, "storage.source is required")
	}
	if !slices.Contains(store.ValidCodecs, c.Storage.Codec) {
		errs = append(errs, fmt.Sprintf("storage.codec %q must be one of %s",
			c.Storage.Codec, strings.Join(store.ValidCodecs, ", ")))
	}
	if c.Storage.BusyTimeout < 0 {
		errs = append(errs, "storage.busy_timeout must not be negative")
	}

	if c.Bridge.MaxBuffer <= 0 {
		errs = append(errs, "bridge.max_buffer must be positive")
	}
	if c.Bridge.MaxCallbackDepth <= 0 {
		errs = append(errs, "bridge.max_callback_depth must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
