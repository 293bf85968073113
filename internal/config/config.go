// Package config loads process configuration from an optional YAML file,
// with environment variables overriding whatever the file sets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Backend BackendConfig `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ListenConfig is the address clients dial. The same port also serves
// /healthz and /metrics, distinguished from PostgreSQL traffic by peeking
// the first bytes of each new connection.
type ListenConfig struct {
	Address string `yaml:"address"`
}

// BackendConfig is the single real PostgreSQL server every client is
// transparently proxied to.
type BackendConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig controls the /metrics and status-page surface. Disabling it
// leaves the listen address serving PostgreSQL traffic only.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	StatusPage bool   `yaml:"status_page"`
	Address    string `yaml:"address"`
}

// LoadConfig builds a Config from hardcoded defaults, overlaid by
// configPath's YAML contents (if it exists and configPath is non-empty),
// overlaid by environment variables, then validated.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		Listen: ListenConfig{
			Address: ":5432",
		},
		Backend: BackendConfig{
			Host:        "localhost",
			Port:        5433,
			DialTimeout: 5 * time.Second,
			IdleTimeout: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			StatusPage: true,
			Address:    "",
		},
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	loadFromEnv(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	if addr := os.Getenv("PGROLLBACK_LISTEN_ADDRESS"); addr != "" {
		cfg.Listen.Address = addr
	}

	if host := os.Getenv("PGROLLBACK_BACKEND_HOST"); host != "" {
		cfg.Backend.Host = host
	}
	if port := os.Getenv("PGROLLBACK_BACKEND_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Backend.Port = p
		}
	}
	if timeout := os.Getenv("PGROLLBACK_DIAL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Backend.DialTimeout = d
		}
	}
	if timeout := os.Getenv("PGROLLBACK_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Backend.IdleTimeout = d
		}
	}

	if level := os.Getenv("PGROLLBACK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("PGROLLBACK_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}

	if addr := os.Getenv("PGROLLBACK_METRICS_ADDRESS"); addr != "" {
		cfg.Metrics.Address = addr
	}
	if v := os.Getenv("PGROLLBACK_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("PGROLLBACK_STATUS_PAGE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.StatusPage = b
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Listen.Address == "" {
		return fmt.Errorf("listen address is required")
	}
	if cfg.Backend.Host == "" {
		return fmt.Errorf("backend host is required")
	}
	if cfg.Backend.Port == 0 {
		return fmt.Errorf("backend port is required")
	}
	return nil
}
