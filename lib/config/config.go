// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for messageportd and
// its companion tools.
//
// Configuration is loaded from a single file specified by:
//   - MESSAGEPORTD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's top-level configuration.
type Config struct {
	// SocketPath is the request-channel Unix socket the broker listens
	// on. Reverse channels connect to the same path and declare their
	// role via the hello handshake.
	SocketPath string `yaml:"socket_path"`

	// SocketDirMode is the permission mode applied to the socket's
	// parent directory when the daemon creates it.
	SocketDirMode uint32 `yaml:"socket_dir_mode"`

	// SocketMode is the permission mode applied to the socket file
	// itself. Every local application must be able to connect, so this
	// is normally world-writable; the broker's trust check, not
	// filesystem permissions, is what protects delivery.
	SocketMode uint32 `yaml:"socket_mode"`

	// MACLabel is attached to the socket's parent directory and the
	// socket file via lib/maclabel, best-effort. Empty disables it.
	MACLabel string `yaml:"mac_label"`

	// Identity configures how peer PIDs are resolved to application
	// identifiers.
	Identity IdentityConfig `yaml:"identity"`

	// PackageManager configures the trust-check oracle.
	PackageManager PackageManagerConfig `yaml:"package_manager"`

	// MaxPendingPerClient bounds how many undelivered DeliverMessage
	// frames the broker queues for one reverse channel before treating
	// the client as unresponsive.
	MaxPendingPerClient int `yaml:"max_pending_per_client"`

	// AdminSocketPath is a second Unix socket, restricted to peers
	// sharing the daemon's UID, that serves the registry/client status
	// action. Empty disables it.
	AdminSocketPath string `yaml:"admin_socket_path"`

	// LogLevel controls the daemon's slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// IdentityConfig selects and configures the identity resolver.
type IdentityConfig struct {
	// AppRoots are the installation-directory prefixes the
	// /proc-backed resolver matches executable paths against.
	AppRoots []string `yaml:"app_roots"`
}

// PackageManagerConfig selects and configures the trust-check oracle.
type PackageManagerConfig struct {
	// ManifestPath is the YAML file listing installed applications and
	// their preloaded/certificate attributes. A daemon started without
	// one runs with an empty oracle, so every trust check fails.
	ManifestPath string `yaml:"manifest_path"`
}

// Default returns the configuration used to fill in zero-valued
// fields before a config file is loaded. The config file is still
// required; these are not silent runtime fallbacks.
func Default() *Config {
	return &Config{
		SocketPath:          "/run/messageportd/message-port-server",
		SocketDirMode:       0755,
		SocketMode:          0666,
		MaxPendingPerClient: 256,
		LogLevel:            "info",
	}
}

// Load reads the path named by MESSAGEPORTD_CONFIG.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks — if the variable is unset, this
// fails.
func Load() (*Config, error) {
	path := os.Getenv("MESSAGEPORTD_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("MESSAGEPORTD_CONFIG environment variable not set; " +
			"set it to the path of your messageportd.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, applying
// ${VAR} expansion to path fields for portability across devices.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
	c.AdminSocketPath = expandVars(c.AdminSocketPath)
	c.PackageManager.ManifestPath = expandVars(c.PackageManager.ManifestPath)
	for i, root := range c.Identity.AppRoots {
		c.Identity.AppRoots[i] = expandVars(root)
	}
}

// varPattern matches ${VAR} and ${VAR:-default} references.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name, defaultValue := parts[1], ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if c.MaxPendingPerClient <= 0 {
		errs = append(errs, fmt.Errorf("max_pending_per_client must be positive"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureSocketDir creates the socket's parent directory with
// SocketDirMode if it does not already exist.
func (c *Config) EnsureSocketDir() error {
	dir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(dir, os.FileMode(c.SocketDirMode)); err != nil {
		return fmt.Errorf("config: creating socket directory %s: %w", dir, err)
	}
	return nil
}
