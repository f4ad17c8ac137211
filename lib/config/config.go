// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the greenhouse
// pipeline binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - GREENHOUSE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// The file merges over built-in defaults, so a minimal file (or none
// at all, via [Default]) is enough to run against a local broker.
// Environment variables never override file values; the file is the
// single source of truth. Individual flags on each binary may still
// override single fields after loading.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration shared by every binary in the
// pipeline. The edge processor uses all of it; read-side tools use
// Storage only.
type Config struct {
	// Broker configures the MQTT connection.
	Broker BrokerConfig `yaml:"broker"`

	// Storage configures the telemetry database.
	Storage StorageConfig `yaml:"storage"`

	// Anomaly configures threshold classification.
	Anomaly AnomalyConfig `yaml:"anomaly"`

	// LogLevel is the minimum slog level: debug, info, warn, error.
	// Default: info.
	LogLevel string `yaml:"log_level"`
}

// BrokerConfig configures the MQTT connection.
type BrokerConfig struct {
	// Host is the broker hostname or IP. Default: localhost.
	Host string `yaml:"host"`

	// Port is the broker TCP port. Default: 1883.
	Port int `yaml:"port"`

	// ClientID is the MQTT client identifier. Publishers and
	// subscribers must use distinct IDs or the broker will disconnect
	// one of them.
	ClientID string `yaml:"client_id"`

	// Topic is the telemetry topic. Default: greenhouse/telemetry.
	Topic string `yaml:"topic"`
}

// URL returns the broker address in the form the MQTT client expects.
func (b BrokerConfig) URL() string {
	return fmt.Sprintf("tcp://%s:%d", b.Host, b.Port)
}

// StorageConfig configures the telemetry database.
type StorageConfig struct {
	// Path is the SQLite database file. Parent directories are created
	// on open. Default: greenhouse.db in the working directory.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the store's
	// default.
	PoolSize int `yaml:"pool_size"`
}

// AnomalyConfig configures threshold classification.
type AnomalyConfig struct {
	// ACHPThreshold marks a reading anomalous when its ACHP value is
	// strictly greater than this. Default: 50.0.
	ACHPThreshold float64 `yaml:"achp_threshold"`
}

// Default returns the built-in defaults, suitable for running the
// whole pipeline against a broker on localhost.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "greenhouse-edge",
			Topic:    "greenhouse/telemetry",
		},
		Storage: StorageConfig{
			Path: "greenhouse.db",
		},
		Anomaly: AnomalyConfig{
			ACHPThreshold: 50.0,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the file named by the
// GREENHOUSE_CONFIG environment variable, or returns [Default] when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv("GREENHOUSE_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Broker.Host == "" {
		errs = append(errs, fmt.Errorf("broker.host is required"))
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
	}
	if c.Broker.Topic == "" {
		errs = append(errs, fmt.Errorf("broker.topic is required"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel maps LogLevel to its slog equivalent.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
}
