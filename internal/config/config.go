// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/quillcli/quill/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete quill configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Provider selection
	Provider ProviderConfig `toml:"provider" json:"provider"`

	// Local (Ollama) configuration
	Local LocalConfig `toml:"local" json:"local"`

	// Cloud configuration
	Cloud CloudConfig `toml:"cloud" json:"cloud"`

	// History persistence configuration
	History HistoryConfig `toml:"history" json:"history"`
}

// ProviderConfig controls which backend answers a request.
type ProviderConfig struct {
	// Mode is the provider selection mode: "auto", "local", "cloud".
	// "auto" probes the local server and falls back to cloud when it
	// is unreachable.
	Mode string `toml:"mode" json:"mode"`
	// Fallback controls auto-mode behavior when the local server is
	// down: "cloud" or "error".
	Fallback string `toml:"fallback" json:"fallback"`
}

// LocalConfig contains local Ollama settings.
type LocalConfig struct {
	// URL of the Ollama server.
	// Uses an explicit IPv4 address rather than localhost to avoid
	// IPv6 resolution issues on Windows/WSL.
	URL string `toml:"url" json:"url"`
	// Model is the default local model.
	Model string `toml:"model" json:"model"`
}

// CloudConfig contains cloud provider settings.
type CloudConfig struct {
	// BaseURL of the chat-completions API.
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey authorizes requests. Usually set via QUILL_API_KEY.
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is the default cloud model.
	Model string `toml:"model" json:"model"`
	// MaxRetries for transient failures.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RequestsPerMinute caps client-side request pacing (0 = unlimited).
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// HistoryConfig controls conversation persistence.
type HistoryConfig struct {
	// Enabled controls whether chat turns are recorded.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path to the SQLite database (empty = ~/.quill/history.db).
	Path string `toml:"path" json:"path"`
	// MaxConversations retained before pruning (0 = unlimited).
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Provider: ProviderConfig{
			Mode:     "auto",
			Fallback: "cloud",
		},

		Local: LocalConfig{
			URL:   "http://127.0.0.1:11434",
			Model: "qwen2.5-coder:7b",
		},

		Cloud: CloudConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "anthropic/claude-3.5-sonnet",
			MaxRetries:        3,
			RequestsPerMinute: 60,
		},

		History: HistoryConfig{
			Enabled:          true,
			MaxConversations: 500,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the quill configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".quill"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens config file permissions to 0600.
// The file may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", info.Mode().Perm(), err)
		}
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last, then validation.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := PathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finish(cfg)
		}
	}

	if path, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadJSON(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := loadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := loadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies env overrides, defaults, and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

func loadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# quill configuration file\n")
	sb.WriteString("# Generated by quill - edit with care\n\n")

	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
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

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validModes := map[string]bool{"auto": true, "local": true, "cloud": true}
	if !validModes[strings.ToLower(c.Provider.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "provider.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: auto, local, cloud", c.Provider.Mode),
		})
	}

	if c.Provider.Fallback != "" {
		validFallbacks := map[string]bool{"cloud": true, "error": true}
		if !validFallbacks[strings.ToLower(c.Provider.Fallback)] {
			errs = append(errs, ValidationError{
				Field:   "provider.fallback",
				Message: fmt.Sprintf("invalid fallback '%s', must be one of: cloud, error", c.Provider.Fallback),
			})
		}
	}

	if c.Local.URL != "" {
		if u, err := url.Parse(c.Local.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "local.url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Local.URL),
			})
		}
	}

	if c.Cloud.BaseURL != "" {
		if u, err := url.Parse(c.Cloud.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "cloud.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Cloud.BaseURL),
			})
		}
	}

	if c.Cloud.MaxRetries < 0 || c.Cloud.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "cloud.max_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.Cloud.MaxRetries),
		})
	}

	if c.Cloud.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "cloud.requests_per_minute",
			Message: "must be non-negative",
		})
	}

	if c.History.MaxConversations < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_conversations",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in defaults for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Provider.Mode == "" {
		c.Provider.Mode = defaults.Provider.Mode
	}
	if c.Provider.Fallback == "" {
		c.Provider.Fallback = defaults.Provider.Fallback
	}
	if c.Local.URL == "" {
		c.Local.URL = defaults.Local.URL
	}
	if c.Local.Model == "" {
		c.Local.Model = defaults.Local.Model
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	if c.Cloud.Model == "" {
		c.Cloud.Model = defaults.Cloud.Model
	}
	if c.Cloud.MaxRetries == 0 {
		c.Cloud.MaxRetries = defaults.Cloud.MaxRetries
	}
	if c.Cloud.RequestsPerMinute == 0 {
		c.Cloud.RequestsPerMinute = defaults.Cloud.RequestsPerMinute
	}
	if c.History.MaxConversations == 0 {
		c.History.MaxConversations = defaults.History.MaxConversations
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - QUILL_MODE: overrides provider.mode
//   - QUILL_MODEL: overrides the model for both backends
//   - QUILL_OLLAMA_URL: overrides local.url
//   - QUILL_API_KEY: overrides cloud.api_key
//   - QUILL_CLOUD_URL: overrides cloud.base_url
//   - QUILL_LOCAL: set to "1" or "true" to force local mode
func (c *Config) ApplyEnvOverrides() {
	if mode := os.Getenv("QUILL_MODE"); mode != "" {
		c.Provider.Mode = mode
	}
	if model := os.Getenv("QUILL_MODEL"); model != "" {
		c.Local.Model = model
		c.Cloud.Model = model
	}
	if u := os.Getenv("QUILL_OLLAMA_URL"); u != "" {
		c.Local.URL = u
	}
	if key := os.Getenv("QUILL_API_KEY"); key != "" {
		c.Cloud.APIKey = key
	}
	if u := os.Getenv("QUILL_CLOUD_URL"); u != "" {
		c.Cloud.BaseURL = u
	}
	if local := os.Getenv("QUILL_LOCAL"); local == "1" || strings.EqualFold(local, "true") {
		c.Provider.Mode = "local"
	}
}

// =============================================================================
// GET/SET (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by dot-notation key
// (e.g. "provider.mode").
func (c *Config) Get(key string) (any, error) {
	switch strings.ToLower(key) {
	case "version":
		return c.Version, nil
	case "provider.mode":
		return c.Provider.Mode, nil
	case "provider.fallback":
		return c.Provider.Fallback, nil
	case "local.url":
		return c.Local.URL, nil
	case "local.model":
		return c.Local.Model, nil
	case "cloud.base_url":
		return c.Cloud.BaseURL, nil
	case "cloud.api_key":
		if c.Cloud.APIKey == "" {
			return "", nil
		}
		return "[REDACTED]", nil
	case "cloud.model":
		return c.Cloud.Model, nil
	case "cloud.max_retries":
		return c.Cloud.MaxRetries, nil
	case "cloud.requests_per_minute":
		return c.Cloud.RequestsPerMinute, nil
	case "history.enabled":
		return c.History.Enabled, nil
	case "history.path":
		return c.History.Path, nil
	case "history.max_conversations":
		return c.History.MaxConversations, nil
	default:
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
}

// Set assigns a configuration value by dot-notation key. String values
// are converted to the field's type.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "provider.mode":
		c.Provider.Mode = value
	case "provider.fallback":
		c.Provider.Fallback = value
	case "local.url":
		c.Local.URL = value
	case "local.model":
		c.Local.Model = value
	case "cloud.base_url":
		c.Cloud.BaseURL = value
	case "cloud.api_key":
		c.Cloud.APIKey = value
	case "cloud.model":
		c.Cloud.Model = value
	case "cloud.max_retries":
		n, err := parsePositiveInt(value, "cloud.max_retries")
		if err != nil {
			return err
		}
		c.Cloud.MaxRetries = n
	case "cloud.requests_per_minute":
		n, err := parsePositiveInt(value, "cloud.requests_per_minute")
		if err != nil {
			return err
		}
		c.Cloud.RequestsPerMinute = n
	case "history.enabled":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("history.enabled: %w", err)
		}
		c.History.Enabled = b
	case "history.path":
		c.History.Path = value
	case "history.max_conversations":
		n, err := parsePositiveInt(value, "history.max_conversations")
		if err != nil {
			return err
		}
		c.History.MaxConversations = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return c.Validate()
}

// AllKeys returns all configuration keys in dot notation.
func AllKeys() []string {
	return []string{
		"version",
		"provider.mode",
		"provider.fallback",
		"local.url",
		"local.model",
		"cloud.base_url",
		"cloud.api_key",
		"cloud.model",
		"cloud.max_retries",
		"cloud.requests_per_minute",
		"history.enabled",
		"history.path",
		"history.max_conversations",
	}
}

func parsePositiveInt(s, field string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", field, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %d", field, n)
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// String returns a JSON rendering of the config for display.
// The API key is redacted; secrets must not appear in any output that
// could be logged or displayed.
func (c *Config) String() string {
	safe := *c
	if safe.Cloud.APIKey != "" {
		safe.Cloud.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(&safe, "", "  ")
	return string(data)
}
