// Package config loads server configuration from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Port           string  `yaml:"port"`
	LogLevel       string  `yaml:"log_level"`
	DatabaseURL    string  `yaml:"database_url"`
	DataDir        string  `yaml:"data_dir"`
	RedisURL       string  `yaml:"redis_url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	OTelInsecure bool   `yaml:"otel_insecure"`

	ArtifactStorageType string `yaml:"artifact_storage_type"`
}

// Default returns the lite-mode defaults.
func Default() *Config {
	return &Config{
		Port:                "8080",
		LogLevel:            "INFO",
		DataDir:             "data",
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		OTelEndpoint:        "localhost:4317",
		OTelInsecure:        true,
		ArtifactStorageType: "fs",
	}
}

// Load builds the configuration: defaults, then the LANDLEDGER_CONFIG overlay file
// when set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("LANDLEDGER_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DataDir, "DATA_DIR")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.OTelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.ArtifactStorageType, "ARTIFACT_STORAGE_TYPE")

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("config: RATE_LIMIT_RPS must be a positive number, got %q", v)
		}
		cfg.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			return nil, fmt.Errorf("config: RATE_LIMIT_BURST must be a positive integer, got %q", v)
		}
		cfg.RateLimitBurst = burst
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.OTelEnabled = v == "true"
	}
	if v := os.Getenv("OTEL_INSECURE"); v != "" {
		cfg.OTelInsecure = v == "true"
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// LiteMode reports whether the embedded SQLite store is used.
func (c *Config) LiteMode() bool {
	return c.DatabaseURL == ""
}

// SlogLevel maps LogLevel onto a slog level. Unknown values fall back to INFO.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
