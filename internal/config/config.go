// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/counsellor/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete counsellor configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend connection
	API APIConfig `toml:"api" json:"api"`

	// Local conversation database
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Owning user of stored conversations
	User UserConfig `toml:"user" json:"user"`

	// Terminal interface
	UI UIConfig `toml:"ui" json:"ui"`

	// Recording and playback
	Voice VoiceConfig `toml:"voice" json:"voice"`

	// Diagnostics log
	Log LogConfig `toml:"log" json:"log"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the counsellor backend URL
	BaseURL string `toml:"base_url" json:"base_url"`
	// Token is a bearer token. Prefer TokenFile so the token stays out of
	// the config file.
	Token string `toml:"token" json:"token"`
	// TokenFile is read on every request, so signing in elsewhere takes
	// effect without a restart
	TokenFile string `toml:"token_file" json:"token_file"`
	// ProbeTimeoutSecs bounds one liveness check
	ProbeTimeoutSecs int `toml:"probe_timeout_secs" json:"probe_timeout_secs"`
	// ProbeIntervalSecs is the delay between failed liveness checks
	ProbeIntervalSecs int `toml:"probe_interval_secs" json:"probe_interval_secs"`
	// SendTimeoutSecs bounds one chat call
	SendTimeoutSecs int `toml:"send_timeout_secs" json:"send_timeout_secs"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file
	Path string `toml:"path" json:"path"`
}

// UserConfig identifies the owner of stored conversations.
type UserConfig struct {
	// ID defaults to the login name
	ID string `toml:"id" json:"id"`
}

// UIConfig contains terminal interface settings.
type UIConfig struct {
	// RevealTickMs is the per-character reveal interval
	RevealTickMs int `toml:"reveal_tick_ms" json:"reveal_tick_ms"`
	// MarkdownWidth is the wrap width for rendered replies outside the TUI
	MarkdownWidth int `toml:"markdown_width" json:"markdown_width"`
	// Plain forces the line-oriented chat instead of the full-screen TUI
	Plain bool `toml:"plain" json:"plain"`
}

// VoiceConfig contains recording and playback settings.
type VoiceConfig struct {
	// Enabled turns on the recorder and player commands
	Enabled bool `toml:"enabled" json:"enabled"`
	// RecordCommand writes audio to stdout until interrupted
	RecordCommand []string `toml:"record_command" json:"record_command"`
	// PlayCommand plays the file given as its last argument and exits
	PlayCommand []string `toml:"play_command" json:"play_command"`
}

// LogConfig contains diagnostics log settings.
type LogConfig struct {
	// Level is a logrus level name
	Level string `toml:"level" json:"level"`
	// Path is the log file; the TUI owns the terminal so logs never go there
	Path string `toml:"path" json:"path"`
}

// ProbeTimeout returns the liveness check timeout.
func (a APIConfig) ProbeTimeout() time.Duration {
	return time.Duration(a.ProbeTimeoutSecs) * time.Second
}

// ProbeInterval returns the delay between failed liveness checks.
func (a APIConfig) ProbeInterval() time.Duration {
	return time.Duration(a.ProbeIntervalSecs) * time.Second
}

// SendTimeout returns the chat call timeout.
func (a APIConfig) SendTimeout() time.Duration {
	return time.Duration(a.SendTimeoutSecs) * time.Second
}

// RevealTick returns the per-character reveal interval.
func (u UIConfig) RevealTick() time.Duration {
	return time.Duration(u.RevealTickMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".counsellor"
	}
	return &Config{
		Version: "1",
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			TokenFile:         filepath.Join(dir, "token"),
			ProbeTimeoutSecs:  10,
			ProbeIntervalSecs: 5,
			SendTimeoutSecs:   120,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "counsellor.db"),
		},
		User: UserConfig{
			ID: defaultUserID(),
		},
		UI: UIConfig{
			RevealTickMs:  15,
			MarkdownWidth: 80,
		},
		Voice: VoiceConfig{
			RecordCommand: []string{"arecord", "-q", "-f", "cd", "-t", "wav"},
			PlayCommand:   []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(dir, "counsellor.log"),
		},
	}
}

func defaultUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the counsellor configuration directory. COUNSELLOR_HOME
// overrides the default ~/.counsellor.
func ConfigDir() (string, error) {
	if dir := os.Getenv("COUNSELLOR_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".counsellor"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600; it may hold a
// bearer token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.counsellor/config.toml if present, then applies defaults,
// environment overrides and validation. A missing file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
		}
	}

	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// API
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.Token == "" && cfg.API.TokenFile == "" {
		cfg.API.TokenFile = defaults.API.TokenFile
	}
	if cfg.API.ProbeTimeoutSecs == 0 {
		cfg.API.ProbeTimeoutSecs = defaults.API.ProbeTimeoutSecs
	}
	if cfg.API.ProbeIntervalSecs == 0 {
		cfg.API.ProbeIntervalSecs = defaults.API.ProbeIntervalSecs
	}
	if cfg.API.SendTimeoutSecs == 0 {
		cfg.API.SendTimeoutSecs = defaults.API.SendTimeoutSecs
	}

	// Storage
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaults.Storage.Path
	}

	// User
	if cfg.User.ID == "" {
		cfg.User.ID = defaults.User.ID
	}

	// UI
	if cfg.UI.RevealTickMs == 0 {
		cfg.UI.RevealTickMs = defaults.UI.RevealTickMs
	}
	if cfg.UI.MarkdownWidth == 0 {
		cfg.UI.MarkdownWidth = defaults.UI.MarkdownWidth
	}

	// Voice
	if len(cfg.Voice.RecordCommand) == 0 {
		cfg.Voice.RecordCommand = defaults.Voice.RecordCommand
	}
	if len(cfg.Voice.PlayCommand) == 0 {
		cfg.Voice.PlayCommand = defaults.Voice.PlayCommand
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = defaults.Log.Path
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes the configuration to path with 0600
// permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# counsellor configuration file")
	fmt.Fprintln(&buf, "# Generated by counsellor - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: "cannot be empty"})
	} else if err := validateURL(c.API.BaseURL); err != nil {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: err.Error()})
	}

	checkRange := func(field string, v, min, max int) {
		if v < min || v > max {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be between %d and %d (got %d)", min, max, v),
			})
		}
	}
	checkRange("api.probe_timeout_secs", c.API.ProbeTimeoutSecs, 1, 300)
	checkRange("api.probe_interval_secs", c.API.ProbeIntervalSecs, 1, 300)
	checkRange("api.send_timeout_secs", c.API.SendTimeoutSecs, 1, 600)
	checkRange("ui.reveal_tick_ms", c.UI.RevealTickMs, 1, 1000)
	checkRange("ui.markdown_width", c.UI.MarkdownWidth, 20, 400)

	if strings.TrimSpace(c.User.ID) == "" {
		errs = append(errs, ValidationError{Field: "user.id", Message: "cannot be empty"})
	}
	if c.Storage.Path == "" {
		errs = append(errs, ValidationError{Field: "storage.path", Message: "cannot be empty"})
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q (use panic, fatal, error, warn, info, debug or trace)", c.Log.Level),
		})
	}

	if c.Voice.Enabled {
		if len(c.Voice.RecordCommand) == 0 || c.Voice.RecordCommand[0] == "" {
			errs = append(errs, ValidationError{Field: "voice.record_command", Message: "cannot be empty when voice is enabled"})
		}
		if len(c.Voice.PlayCommand) == 0 || c.Voice.PlayCommand[0] == "" {
			errs = append(errs, ValidationError{Field: "voice.play_command", Message: "cannot be empty when voice is enabled"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - COUNSELLOR_API_URL: overrides api.base_url
//   - COUNSELLOR_TOKEN: overrides api.token
//   - COUNSELLOR_TOKEN_FILE: overrides api.token_file
//   - COUNSELLOR_USER_ID: overrides user.id
//   - COUNSELLOR_DB: overrides storage.path
//   - COUNSELLOR_LOG_LEVEL: overrides log.level
//   - COUNSELLOR_VOICE: overrides voice.enabled
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COUNSELLOR_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("COUNSELLOR_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("COUNSELLOR_TOKEN_FILE"); v != "" {
		c.API.TokenFile = v
	}
	if v := os.Getenv("COUNSELLOR_USER_ID"); v != "" {
		c.User.ID = v
	}
	if v := os.Getenv("COUNSELLOR_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("COUNSELLOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COUNSELLOR_VOICE"); v != "" {
		c.Voice.Enabled = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g. "ui.plain").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent. Acronym fields such as BaseURL match case-insensitively.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion. Slices accept a whitespace-separated string.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Fields(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.base_url",
		"api.token",
		"api.token_file",
		"api.probe_timeout_secs",
		"api.probe_interval_secs",
		"api.send_timeout_secs",
		"storage.path",
		"user.id",
		"ui.reveal_tick_ms",
		"ui.markdown_width",
		"ui.plain",
		"voice.enabled",
		"voice.record_command",
		"voice.play_command",
		"log.level",
		"log.path",
	}
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Voice.RecordCommand = append([]string(nil), c.Voice.RecordCommand...)
	clone.Voice.PlayCommand = append([]string(nil), c.Voice.PlayCommand...)
	return &clone
}

// String returns the config as indented JSON with the token redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Token != "" {
		safe.API.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load failures fall back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
