// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete knowhub configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Remote knowledge service
	Server ServerConfig `toml:"server" json:"server"`

	// Credential slot
	Session SessionConfig `toml:"session" json:"session"`

	// Document upload and listing
	Documents DocumentsConfig `toml:"documents" json:"documents"`

	// Conversation behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Structured logging
	Log LogConfig `toml:"log" json:"log"`

	// Terminal UI
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig describes how to reach the remote knowledge service.
type ServerConfig struct {
	// URL is the API base URL; endpoint paths such as /auth/login are appended.
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds every request. Uploads and answers can be slow.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimit caps outbound requests per second (0 = unlimited).
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the token bucket size when RateLimit is set.
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// SessionConfig describes where the credential is persisted.
type SessionConfig struct {
	// CredentialPath is the sealed credential slot (empty = ~/.knowhub/credential).
	CredentialPath string `toml:"credential_path" json:"credential_path"`
	// Persist keeps the credential across restarts. When false the
	// credential lives in memory only.
	Persist bool `toml:"persist" json:"persist"`
}

// DocumentsConfig holds upload validation and refresh settings.
type DocumentsConfig struct {
	// AllowedFormats lists accepted declared formats (file extensions).
	AllowedFormats []string `toml:"allowed_formats" json:"allowed_formats"`
	// MaxUploadMB rejects larger files before any network call (0 = unlimited).
	MaxUploadMB int `toml:"max_upload_mb" json:"max_upload_mb"`
	// PollIntervalSecs is how often the views re-list while documents are
	// still uploading or processing.
	PollIntervalSecs int `toml:"poll_interval_secs" json:"poll_interval_secs"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	// Greeting is shown at the top of the chat view. It is not part of the
	// transcript.
	Greeting string `toml:"greeting" json:"greeting"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Path is the log file (empty = ~/.knowhub/knowhub.log, "-" = disabled).
	Path string `toml:"path" json:"path"`
}

// UIConfig holds terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme"`
	// ShowSources lists citations under assistant answers.
	ShowSources bool `toml:"show_sources" json:"show_sources"`
}

// DefaultGreeting is the assistant greeting shown when the chat view opens.
const DefaultGreeting = "Hi there! I am your AI-powered knowledge assistant. How can I help you today?"

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			URL:         "http://localhost:8080/api",
			TimeoutSecs: 60,
			RateLimit:   0, // unlimited
			RateBurst:   5,
		},

		Session: SessionConfig{
			CredentialPath: "",
			Persist:        true,
		},

		Documents: DocumentsConfig{
			AllowedFormats:   []string{"pdf", "docx", "txt", "csv", "md"},
			MaxUploadMB:      50,
			PollIntervalSecs: 5,
		},

		Chat: ChatConfig{
			Greeting: DefaultGreeting,
		},

		Log: LogConfig{
			Level: "info",
			Path:  "",
		},

		UI: UIConfig{
			Theme:       "auto",
			ShowSources: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the knowhub state directory (~/.knowhub).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".knowhub"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// CredentialPath resolves the credential slot path.
func (c *Config) CredentialPath() (string, error) {
	if c.Session.CredentialPath != "" {
		return c.Session.CredentialPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credential"), nil
}

// LogPath resolves the log file path. An empty result disables logging.
func (c *Config) LogPath() (string, error) {
	switch c.Log.Path {
	case "-":
		return "", nil
	case "":
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "knowhub.log"), nil
	default:
		return c.Log.Path, nil
	}
}

// ensureSecurePermissions tightens config files to 0600.
// SECURITY: the config may point at credential material.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
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
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with defaults,
// environment overrides and validation applied.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in zero values with defaults. Booleans cannot be
// told apart from "unset" and keep whatever the file said.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaults.Server.RateBurst
	}

	if len(cfg.Documents.AllowedFormats) == 0 {
		cfg.Documents.AllowedFormats = defaults.Documents.AllowedFormats
	}
	if cfg.Documents.PollIntervalSecs == 0 {
		cfg.Documents.PollIntervalSecs = defaults.Documents.PollIntervalSecs
	}

	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = defaults.Chat.Greeting
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# knowhub configuration file\n")
	b.WriteString("# Generated by knowhub - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
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

	// Server
	if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.Server.URL),
		})
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("timeout %d out of range (1-3600)", c.Server.TimeoutSecs),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}
	if c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_burst",
			Message: "rate_burst must be at least 1",
		})
	}

	// Documents
	for _, f := range c.Documents.AllowedFormats {
		if f == "" || strings.ContainsAny(f, "./\\ ") {
			errs = append(errs, ValidationError{
				Field:   "documents.allowed_formats",
				Message: fmt.Sprintf("invalid format '%s', use bare extensions like pdf", f),
			})
		}
	}
	if c.Documents.MaxUploadMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "documents.max_upload_mb",
			Message: "max_upload_mb cannot be negative",
		})
	}
	if c.Documents.PollIntervalSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "documents.poll_interval_secs",
			Message: "poll_interval_secs must be at least 1",
		})
	}

	// Log
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	// UI
	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - KNOWHUB_SERVER_URL: overrides server.url
//   - KNOWHUB_TIMEOUT_SECS: overrides server.timeout_secs
//   - KNOWHUB_RATE_LIMIT: overrides server.rate_limit
//   - KNOWHUB_CREDENTIAL_PATH: overrides session.credential_path
//   - KNOWHUB_LOG_LEVEL: overrides log.level
//   - KNOWHUB_LOG_PATH: overrides log.path
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KNOWHUB_SERVER_URL"); v != "" {
		c.Server.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("KNOWHUB_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Server.TimeoutSecs = n
		}
	}
	if v := os.Getenv("KNOWHUB_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Server.RateLimit = f
		}
	}
	if v := os.Getenv("KNOWHUB_CREDENTIAL_PATH"); v != "" {
		c.Session.CredentialPath = v
	}
	if v := os.Getenv("KNOWHUB_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v := os.Getenv("KNOWHUB_LOG_PATH"); v != "" {
		c.Log.Path = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field type; list fields take comma-separated values.
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
	if strings.TrimSpace(key) == "" {
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
// field equivalent ("timeout_secs" -> "TimeoutSecs").
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

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(splitCSV(strVal)))
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

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, sorted.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		sectionKey := strings.Split(section.Tag.Get("toml"), ",")[0]
		if section.Type.Kind() != reflect.Struct {
			keys = append(keys, sectionKey)
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			name := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, sectionKey+"."+name)
		}
	}
	sort.Strings(keys)
	return keys
}
