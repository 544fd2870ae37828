package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "Asia/Seoul", cfg.RunTimeZone)
	assert.Zero(t, cfg.CheckInterval)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
database_driver: postgres
database_url: postgres://file
concurrency: 8
probe_timeout: 20s
check_interval: 24h
run_timezone: UTC
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("CONCURRENCY", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 20*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CheckInterval)
	assert.Equal(t, "UTC", cfg.RunTimeZone)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("CONCURRENCY", "many")
	t.Setenv("PROBE_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.ProbeTimeout)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(writeFile(t, "concurrency: [1, 2"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "unsupported database driver"},
		{"url", func(c *Config) { c.DatabaseURL = "" }, "database url"},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"timeout", func(c *Config) { c.ProbeTimeout = 0 }, "probe timeout"},
		{"marker", func(c *Config) { c.ExposureMarker = "" }, "exposure marker"},
		{"zone", func(c *Config) { c.RunTimeZone = "Mars/Olympus" }, "invalid run timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
