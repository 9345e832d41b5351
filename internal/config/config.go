// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/aryan-mann/obsidian-chat/internal/util"
)

// Defaults for the configurable settings.
const (
	DefaultBaseURL           = "https://api.cohere.ai/v1"
	DefaultMaxRetries        = 2
	DefaultRequestsPerMinute = 20
	DefaultLogLevel          = "warn"

	// dirName is created under the user's home directory.
	dirName = ".coral"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config holds the Coral settings.
type Config struct {
	// APIKey is the Cohere API key. The JSON name matches the plugin's data.json.
	APIKey string `toml:"api_key" json:"ApiKey"`

	// BaseURL is the Cohere API base URL.
	BaseURL string `toml:"base_url" json:"base_url,omitempty"`

	// RequestTimeoutSecs bounds a whole turn, 0 means no limit.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs,omitempty"`

	// MaxRetries for 429 and 5xx responses.
	MaxRetries int `toml:"max_retries" json:"max_retries,omitempty"`

	// RequestsPerMinute bounds outgoing requests, 0 disables the limit.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute,omitempty"`

	// VaultDir is where notes are opened from.
	VaultDir string `toml:"vault_dir" json:"vault_dir,omitempty"`

	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log_level" json:"log_level,omitempty"`

	// WebSearch is the initial web-search toggle.
	WebSearch bool `toml:"web_search" json:"web_search,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		MaxRetries:        DefaultMaxRetries,
		RequestsPerMinute: DefaultRequestsPerMinute,
		LogLevel:          DefaultLogLevel,
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the Coral configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, dirName), nil
}

// PathTOML returns the path to config.toml inside dir.
func PathTOML(dir string) string {
	return filepath.Join(dir, "config.toml")
}

// PathJSON returns the path to the legacy data.json inside dir.
func PathJSON(dir string) string {
	return filepath.Join(dir, "data.json")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "failed to fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.coral.
func Load() (*Config, string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, "", err
	}
	return LoadDir(dir)
}

// LoadDir loads configuration from dir. config.toml wins over data.json;
// with neither present the defaults are used. Environment overrides are
// applied last. The returned path is where Save should write.
func LoadDir(dir string) (*Config, string, error) {
	cfg := Default()
	tomlPath := PathTOML(dir)
	jsonPath := PathJSON(dir)

	switch {
	case fileExists(tomlPath):
		if err := LoadTOML(cfg, tomlPath); err != nil {
			return nil, "", err
		}
	case fileExists(jsonPath):
		if err := LoadJSON(cfg, jsonPath); err != nil {
			return nil, "", err
		}
	}

	if err := finish(cfg); err != nil {
		return nil, "", err
	}
	return cfg, tomlPath, nil
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are read as JSON, anything else as TOML. A missing file yields the
// defaults so the first save creates it.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if fileExists(path) {
		var err error
		if strings.HasSuffix(path, ".json") {
			err = LoadJSON(cfg, path)
		} else {
			err = LoadTOML(cfg, path)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode TOML config %s", path)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read JSON config")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode JSON config %s", path)
	}
	return nil
}

// finish applies environment overrides, defaults and validation.
func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# Coral configuration file\n")
	buf.WriteString("# Generated by coral - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.BaseURL),
		})
	} else if u.Scheme != "https" && u.Scheme != "http" {
		errs = append(errs, ValidationError{
			Field:   "base_url",
			Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
		})
	}

	if c.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "request_timeout_secs", Message: "must not be negative"})
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "max_retries",
			Message: fmt.Sprintf("%d out of range, must be 0-10", c.MaxRetries),
		})
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "requests_per_minute", Message: "must not be negative"})
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown level '%s'", c.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in empty fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
}

// ApplyEnvOverrides applies CORAL_* environment variables:
//
//   - CORAL_API_KEY: overrides api_key
//   - CORAL_BASE_URL: overrides base_url
//   - CORAL_LOG_LEVEL: overrides log_level
//   - CORAL_VAULT: overrides vault_dir
//   - CORAL_WEB_SEARCH: overrides web_search
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("CORAL_API_KEY"); key != "" {
		c.APIKey = key
	}
	if u := os.Getenv("CORAL_BASE_URL"); u != "" {
		c.BaseURL = u
	}
	if level := os.Getenv("CORAL_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if vault := os.Getenv("CORAL_VAULT"); vault != "" {
		c.VaultDir = vault
	}
	if web := os.Getenv("CORAL_WEB_SEARCH"); web != "" {
		if on, err := strconv.ParseBool(web); err == nil {
			c.WebSearch = on
		}
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the configuration as TOML with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.APIKey != "" {
		safe.APIKey = "[REDACTED]"
	}
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(safe)
	return buf.String()
}
