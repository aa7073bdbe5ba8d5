// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for span components.
//
// Configuration is loaded from a single file specified by:
//   - SPAN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is the
// single source of truth; environment variables do not override values.
// The only expansion performed is ${HOME} and similar path variables for
// portability.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for a span daemon.
type Config struct {
	// Server configures the daemon's listening endpoints.
	Server ServerConfig `yaml:"server"`

	// Wire configures frame encoding limits.
	Wire WireConfig `yaml:"wire"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig configures the daemon's listening endpoints.
type ServerConfig struct {
	// SocketPath is the Unix socket the daemon listens on.
	// Default: ${HOME}/.cache/span/daemon.sock
	SocketPath string `yaml:"socket_path"`

	// ListenAddr is an optional TCP address for the WebSocket
	// endpoint, e.g. "127.0.0.1:7733". Empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

// WireConfig configures frame encoding limits.
type WireConfig struct {
	// MaxFrameBytes caps the size of a single frame on the wire.
	// Default: 1048576 (1 MiB). Zero applies the default.
	MaxFrameBytes int `yaml:"max_frame_bytes"`

	// CompressThreshold is the event payload size in bytes at which
	// payloads are compressed. Zero applies the built-in default;
	// negative disables compression.
	CompressThreshold int `yaml:"compress_threshold"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults are the
// base that a loaded file merges over.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			SocketPath: filepath.Join(homeDir, ".cache", "span", "daemon.sock"),
		},
		Wire: WireConfig{
			MaxFrameBytes:     1 << 20,
			CompressThreshold: 0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the SPAN_CONFIG environment variable.
// If SPAN_CONFIG is not set, the defaults are returned.
func Load() (*Config, error) {
	configPath := os.Getenv("SPAN_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Server.SocketPath = expandVars(c.Server.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.SocketPath == "" && c.Server.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("server: at least one of socket_path or listen_addr is required"))
	}

	if c.Wire.MaxFrameBytes < 0 {
		errs = append(errs, fmt.Errorf("wire.max_frame_bytes must not be negative"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", l.Level)
	}
}

// EnsureSocketDir creates the socket's parent directory if needed.
func (c *Config) EnsureSocketDir() error {
	if c.Server.SocketPath == "" {
		return nil
	}
	dir := filepath.Dir(c.Server.SocketPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
