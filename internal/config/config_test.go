package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kvbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
storage:
  source: /tmp/test.db
  codec: zstd
  busy_timeout: 100
  wal: false
bridge:
  max_buffer: 4096
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output, "unset fields keep defaults")
	assert.Equal(t, "/tmp/test.db", cfg.Storage.Source)
	assert.Equal(t, "zstd", cfg.Storage.Codec)
	assert.Equal(t, 100, cfg.Storage.BusyTimeout)
	assert.False(t, cfg.Storage.WAL)
	assert.Equal(t, int64(4096), cfg.Bridge.MaxBuffer)
	assert.Equal(t, 64, cfg.Bridge.MaxCallbackDepth)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Storage, cfg.Storage)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "storage: [unclosed"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvSource, ":mem:")
	t.Setenv(EnvCodec, "lz4")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load(writeConfig(t, "storage:\n  source: file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, ":mem:", cfg.Storage.Source)
	assert.Equal(t, "lz4", cfg.Storage.Codec)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad output", func(c *Config) { c.Logging.Output = "file" }, "logging.output"},
		{"no source", func(c *Config) { c.Storage.Source = "" }, "storage.source is required"},
		{"bad codec", func(c *Config) { c.Storage.Codec = "gzip" }, "storage.codec"},
		{"negative timeout", func(c *Config) { c.Storage.BusyTimeout = -1 }, "storage.busy_timeout"},
		{"zero buffer", func(c *Config) { c.Bridge.MaxBuffer = 0 }, "bridge.max_buffer"},
		{"zero depth", func(c *Config) { c.Bridge.MaxCallbackDepth = 0 }, "bridge.max_callback_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Source = ""
	cfg.Storage.Codec = "gzip"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "; ")
}
