// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for satchel.
//
// Configuration lives in TOML at ~/.satchel/config.toml, with sensible
// defaults, environment variable overrides, and validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/satchelhq/satchel/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete satchel configuration.
type Config struct {
	Version string `toml:"version"`

	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
	Audit   AuditConfig   `toml:"audit"`
	UI      UIConfig      `toml:"ui"`
}

// ServerConfig points at the school filing service.
type ServerConfig struct {
	// BaseURL is the filing service endpoint.
	BaseURL string `toml:"base_url"`
}

// SessionConfig contains the session timeout policy knobs.
type SessionConfig struct {
	// DefaultTimeoutMinutes is the system-wide session length applied when
	// the user has no personal preference.
	DefaultTimeoutMinutes int `toml:"default_timeout_minutes"`
	// MaxTimeoutMinutes caps per-user overrides; 0 means no cap.
	MaxTimeoutMinutes int `toml:"max_timeout_minutes"`
	// ActivityThrottleMS bounds how often activity may reset the timers.
	ActivityThrottleMS int `toml:"activity_throttle_ms"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	Enabled bool `toml:"enabled"`
	// LogPath is the audit log location (empty = ~/.satchel/audit.log).
	LogPath string `toml:"log_path"`
	// MaxSizeMB is the log size before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme"`
	// MouseEnabled turns on mouse event reporting in the TUI.
	MouseEnabled bool `toml:"mouse_enabled"`
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

const (
	defaultTimeoutMinutes = 30
	defaultMaxTimeoutMin  = 240
	defaultThrottleMS     = 1000
	defaultAuditMaxSizeMB = 10
	minTimeoutMinutes     = 1
	minActivityThrottleMS = 100
	maxActivityThrottleMS = 10_000
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Server: ServerConfig{
			BaseURL: "https://files.school.example",
		},
		Session: SessionConfig{
			DefaultTimeoutMinutes: defaultTimeoutMinutes,
			MaxTimeoutMinutes:     defaultMaxTimeoutMin,
			ActivityThrottleMS:    defaultThrottleMS,
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: defaultAuditMaxSizeMB,
		},
		UI: UIConfig{
			Theme:        "auto",
			MouseEnabled: true,
		},
	}
}

// Validate clamps out-of-range values instead of failing: a bad preference
// must never prevent the client from starting.
func (c *Config) Validate() {
	if c.Session.DefaultTimeoutMinutes < minTimeoutMinutes {
		c.Session.DefaultTimeoutMinutes = defaultTimeoutMinutes
	}
	if c.Session.MaxTimeoutMinutes < 0 {
		c.Session.MaxTimeoutMinutes = 0
	}
	if c.Session.MaxTimeoutMinutes > 0 &&
		c.Session.DefaultTimeoutMinutes > c.Session.MaxTimeoutMinutes {
		c.Session.DefaultTimeoutMinutes = c.Session.MaxTimeoutMinutes
	}
	if c.Session.ActivityThrottleMS < minActivityThrottleMS {
		c.Session.ActivityThrottleMS = defaultThrottleMS
	}
	if c.Session.ActivityThrottleMS > maxActivityThrottleMS {
		c.Session.ActivityThrottleMS = maxActivityThrottleMS
	}
	if c.Audit.MaxSizeMB <= 0 {
		c.Audit.MaxSizeMB = defaultAuditMaxSizeMB
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		c.UI.Theme = "auto"
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the satchel data directory (~/.satchel).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".satchel"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

// Load reads the config file, applies environment overrides and validates.
// A missing file is not an error: defaults are returned.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.applyEnv()
		cfg.Validate()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath reads a specific config file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return Default(), fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.Validate()
	return cfg, nil
}

// Save writes the config atomically to the default location.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the config atomically to a specific location.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// applyEnv layers SATCHEL_* environment variables over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("SATCHEL_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("SATCHEL_SESSION_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.DefaultTimeoutMinutes = n
		}
	}
	if v := os.Getenv("SATCHEL_SESSION_MAX_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.MaxTimeoutMinutes = n
		}
	}
	if v := os.Getenv("SATCHEL_AUDIT_ENABLED"); v != "" {
		c.Audit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SATCHEL_AUDIT_LOG_PATH"); v != "" {
		c.Audit.LogPath = v
	}
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the global configuration, loading it on first access. A
// config installed with SetGlobal before the first read is kept, so an
// explicit --config load is never shadowed by the lazy default load.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
			loaded = Default()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal replaces the global configuration. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ReloadGlobal re-reads the config file into the global instance.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// ResetGlobalForTesting resets global state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
}
