package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100*time.Millisecond, cfg.Scanner.ScanInterval)
	assert.Equal(t, 60*time.Second, cfg.Scanner.DebounceTTL)
	assert.Equal(t, 3*time.Second, cfg.Scanner.ProbeTimeout)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 64, cfg.Download.QueueSize)
	assert.Equal(t, "./downloads", cfg.Output.BaseDirectory)
	assert.True(t, cfg.Output.OverwriteExisting)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestLoadFromFile(t *testing.T) {
	content := `
scanner:
  scan_interval: 250ms
  debounce_ttl: 30s
download:
  concurrent_downloads: 5
output:
  base_directory: /tmp/harvest
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.ScanInterval)
	assert.Equal(t, 30*time.Second, cfg.Scanner.DebounceTTL)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "/tmp/harvest", cfg.Output.BaseDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Values not mentioned in the file keep their defaults
	assert.Equal(t, 3*time.Second, cfg.Scanner.ProbeTimeout)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.LoadFromFile(""))
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner: [not a map"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IMGHARVEST_SCAN_INTERVAL", "500ms")
	t.Setenv("IMGHARVEST_OUTPUT_DIR", "/tmp/env-harvest")
	t.Setenv("IMGHARVEST_CONCURRENT_DOWNLOADS", "7")
	t.Setenv("IMGHARVEST_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.ScanInterval)
	assert.Equal(t, "/tmp/env-harvest", cfg.Output.BaseDirectory)
	assert.Equal(t, 7, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("IMGHARVEST_SCAN_INTERVAL", "not-a-duration")
	t.Setenv("IMGHARVEST_CONCURRENT_DOWNLOADS", "-2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 100*time.Millisecond, cfg.Scanner.ScanInterval)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":     "/tmp/flag-harvest",
		"data-dir":   "/tmp/flag-data",
		"concurrent": 2,
		"log-level":  "debug",
	})

	assert.Equal(t, "/tmp/flag-harvest", cfg.Output.BaseDirectory)
	assert.Equal(t, "/tmp/flag-data", cfg.Storage.DataDirectory)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scan interval", func(c *Config) { c.Scanner.ScanInterval = 0 }},
		{"zero debounce ttl", func(c *Config) { c.Scanner.DebounceTTL = 0 }},
		{"zero concurrent downloads", func(c *Config) { c.Download.ConcurrentDownloads = 0 }},
		{"too many concurrent downloads", func(c *Config) { c.Download.ConcurrentDownloads = 11 }},
		{"zero queue size", func(c *Config) { c.Download.QueueSize = 0 }},
		{"empty output directory", func(c *Config) { c.Output.BaseDirectory = "" }},
		{"zero requests per minute", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"negative max attempts", func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Scanner.ScanInterval = 42 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, 42*time.Millisecond, reloaded.Scanner.ScanInterval)
}

func TestDataDirectoryExplicit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = dir

	got, err := cfg.DataDirectory()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	// The directory is created on resolution
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	content := `
output:
  base_directory: /tmp/from-file
logging:
  level: error
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("IMGHARVEST_OUTPUT_DIR", "/tmp/from-env")

	// Flags beat env, env beats file
	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env", cfg.Output.BaseDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
