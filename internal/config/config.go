// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package config loads application configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelsage/config.yaml",
	"/etc/reelsage/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "REELSAGE_CONFIG_PATH"

// envPrefix namespaces all environment overrides, e.g.
// REELSAGE_SERVER_PORT -> server.port.
const envPrefix = "REELSAGE_"

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Weights WeightsConfig `koanf:"weights"`
	History HistoryConfig `koanf:"history"`
	Catalog CatalogConfig `koanf:"catalog"`
	Engine  EngineConfig  `koanf:"engine"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// WeightsConfig holds the weight resource settings.
type WeightsConfig struct {
	Path     string        `koanf:"path"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
	Watch    bool          `koanf:"watch"`
}

// HistoryConfig holds the interaction store settings.
type HistoryConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// CatalogConfig holds movie catalog client settings.
type CatalogConfig struct {
	Path              string        `koanf:"path"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`
}

// EngineConfig holds recommendation pipeline settings.
type EngineConfig struct {
	ProfileCacheTTL  time.Duration `koanf:"profile_cache_ttl"`
	ProfileCacheSize int           `koanf:"profile_cache_size"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns the built-in defaults, applied before file and env
// layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8382,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Weights: WeightsConfig{
			Path:     "/data/weights.json",
			CacheTTL: 5 * time.Minute,
			Watch:    true,
		},
		History: HistoryConfig{
			Path:     "/data/history",
			InMemory: false,
		},
		Catalog: CatalogConfig{
			Path:              "/data/catalog.json",
			RequestsPerSecond: 50,
			Burst:             25,
			BreakerTimeout:    30 * time.Second,
		},
		Engine: EngineConfig{
			ProfileCacheTTL:  2 * time.Minute,
			ProfileCacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// REELSAGE_-prefixed environment variables, highest layer last.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Weights.Path == "" {
		return fmt.Errorf("weights.path must not be empty")
	}
	if c.Weights.CacheTTL <= 0 {
		return fmt.Errorf("weights.cache_ttl must be positive, got %v", c.Weights.CacheTTL)
	}
	if !c.History.InMemory && c.History.Path == "" {
		return fmt.Errorf("history.path must not be empty when the store is persistent")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace/debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envTransform maps REELSAGE_SERVER_PORT to server.port. A double underscore
// separates words within one key segment: REELSAGE_WEIGHTS_CACHE__TTL ->
// weights.cache_ttl.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", "-")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "-", "_")
}

// findConfigFile returns the first config file present, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
