package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // RUN_TIMEZONE must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration values.
type Config struct {
	DatabaseDriver string        `yaml:"database_driver"`
	DatabaseURL    string        `yaml:"database_url"`
	HTTPPort       string        `yaml:"http_port"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	Concurrency    int           `yaml:"concurrency"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ExposureMarker string        `yaml:"exposure_marker"`
	UserAgent      string        `yaml:"user_agent"`
	RunTimeZone    string        `yaml:"run_timezone"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "indexwatch.db",
		HTTPPort:       "8080",
		CheckInterval:  0,
		Concurrency:    5,
		ProbeTimeout:   15 * time.Second,
		ExposureMarker: "academic.naver.com",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		RunTimeZone:    "Asia/Seoul",
		ShutdownGrace:  10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.CheckInterval = getEnvDuration("CHECK_INTERVAL", cfg.CheckInterval)
	cfg.Concurrency = getEnvInt("CONCURRENCY", cfg.Concurrency)
	cfg.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.ExposureMarker = getEnv("EXPOSURE_MARKER", cfg.ExposureMarker)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.RunTimeZone = getEnv("RUN_TIMEZONE", cfg.RunTimeZone)
	cfg.ShutdownGrace = getEnvDuration("SHUTDOWN_GRACE", cfg.ShutdownGrace)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.ExposureMarker == "" {
		return errors.New("exposure marker is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves RunTimeZone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.RunTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid run timezone %q: %w", c.RunTimeZone, err)
	}
	return loc, nil
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
