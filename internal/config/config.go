// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the main configuration structure for ragchat.
type Config struct {
	// Version of the config schema
	Version string `toml:"version" json:"version"`

	// Backend connection settings
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Chat behavior settings
	Chat ChatConfig `toml:"chat" json:"chat"`

	// UI appearance settings
	UI UIConfig `toml:"ui" json:"ui"`

	// Export settings
	Export ExportConfig `toml:"export" json:"export"`
}

// BackendConfig holds chat backend connection settings.
type BackendConfig struct {
	// BaseURL of the chat backend (e.g. http://127.0.0.1:5000)
	BaseURL string `toml:"base_url" json:"base_url"`

	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// StreamTimeoutSecs bounds a whole streamed answer in one-shot mode.
	// Zero means no limit; interactive modes always stream unbounded.
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`

	// StatusPollSecs is the minimum spacing between backend status polls
	StatusPollSecs int `toml:"status_poll_secs" json:"status_poll_secs"`

	// MaxRetries for idempotent (GET) requests after a transport failure
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// ChatConfig holds conversation and streaming behavior settings.
type ChatConfig struct {
	// UseRAG toggles document retrieval for new messages
	UseRAG bool `toml:"use_rag" json:"use_rag"`

	// StreamBatchSize is how many stream fragments accumulate before a
	// repaint is forced regardless of the flush interval
	StreamBatchSize int `toml:"stream_batch_size" json:"stream_batch_size"`

	// StreamIntervalMS is the minimum spacing between streaming repaints
	StreamIntervalMS int `toml:"stream_interval_ms" json:"stream_interval_ms"`
}

// UIConfig holds terminal UI appearance settings.
type UIConfig struct {
	// Theme selects the color scheme: dark, light, or auto
	Theme string `toml:"theme" json:"theme"`

	// ShowTimestamps renders a timestamp next to each message
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`

	// CompactMode removes blank lines between messages
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`

	// WordWrap caps rendered content width. Zero tracks the terminal.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// ExportConfig holds conversation export settings.
type ExportConfig struct {
	// Dir receives exported conversation files
	Dir string `toml:"dir" json:"dir"`

	// Format is the default export format: markdown or json
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Backend: BackendConfig{
			BaseURL:           "http://127.0.0.1:5000",
			TimeoutSecs:       30,
			StreamTimeoutSecs: 0,
			StatusPollSecs:    5,
			MaxRetries:        2,
		},
		Chat: ChatConfig{
			UseRAG:           true,
			StreamBatchSize:  16,
			StreamIntervalMS: 33,
		},
		UI: UIConfig{
			Theme:          "auto",
			ShowTimestamps: false,
			CompactMode:    false,
			WordWrap:       100,
		},
		Export: ExportConfig{
			Dir:    filepath.Join(ConfigDir(), "exports"),
			Format: "markdown",
		},
	}
}

// =============================================================================
// FILE LOCATIONS
// =============================================================================

// ConfigDir returns the ragchat configuration directory (~/.ragchat).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ragchat"
	}
	return filepath.Join(home, ".ragchat")
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// EnsureConfigDir creates the configuration directory if needed.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0700)
}

// ensureSecurePermissions tightens a config file to owner read/write.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0077 != 0 {
		return os.Chmod(path, 0600)
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration with the documented precedence: an explicit
// $RAGCHAT_CONFIG path, then ~/.ragchat/config.toml, then config.json,
// then built-in defaults. Environment overrides apply on every path.
func Load() (*Config, error) {
	if path := os.Getenv("RAGCHAT_CONFIG"); path != "" {
		return LoadFromPath(path)
	}

	// Try TOML first
	tomlPath := ConfigPathTOML()
	if _, err := os.Stat(tomlPath); err == nil {
		cfg, err := LoadTOML(tomlPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	// Fall back to JSON
	jsonPath := ConfigPathJSON()
	if _, err := os.Stat(jsonPath); err == nil {
		cfg, err := LoadJSON(jsonPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadTOML reads a TOML config file. Keys absent from the file keep their
// default values, so a sparse file never zeroes unrelated settings.
func LoadTOML(path string) (*Config, error) {
	_ = ensureSecurePermissions(path)

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}

// LoadJSON reads a JSON config file. Keys absent from the file keep their
// default values.
func LoadJSON(path string) (*Config, error) {
	_ = ensureSecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from an explicit file path, selecting
// the format by extension (unknown extensions try TOML, then JSON).
func LoadFromPath(path string) (*Config, error) {
	var cfg *Config
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = LoadTOML(path)
	case ".json":
		cfg, err = LoadJSON(path)
	default:
		cfg, err = LoadTOML(path)
		if err != nil {
			cfg, err = LoadJSON(path)
		}
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default TOML location.
func (c *Config) Save() error {
	return c.SaveTOML()
}

// SaveTOML writes the configuration as TOML with owner-only permissions.
func (c *Config) SaveTOML() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := ConfigPathTOML()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Re-assert permissions in case the file pre-existed with wider mode
	_ = f.Chmod(0600)

	fmt.Fprintln(f, "# ragchat configuration file")
	fmt.Fprintln(f, "# Edit by hand or use: ragchat config set <key> <value>")
	fmt.Fprintln(f)

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode TOML config: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON atomically.
func (c *Config) SaveJSON() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON config: %w", err)
	}
	return util.AtomicWriteFile(ConfigPathJSON(), data, 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects all validation failures for one config.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values. All failures are
// reported together rather than stopping at the first.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Backend
	if c.Backend.BaseURL == "" {
		errs = append(errs, ValidationError{"backend.base_url", "must not be empty"})
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, ValidationError{"backend.base_url", "must be an absolute URL"})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"backend.base_url", "scheme must be http or https"})
	}
	if c.Backend.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{"backend.timeout_secs", "must be positive"})
	}
	if c.Backend.StreamTimeoutSecs < 0 {
		errs = append(errs, ValidationError{"backend.stream_timeout_secs", "must be zero or positive"})
	}
	if c.Backend.StatusPollSecs <= 0 {
		errs = append(errs, ValidationError{"backend.status_poll_secs", "must be positive"})
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > 10 {
		errs = append(errs, ValidationError{"backend.max_retries", "must be between 0 and 10"})
	}

	// Chat
	if c.Chat.StreamBatchSize <= 0 {
		errs = append(errs, ValidationError{"chat.stream_batch_size", "must be positive"})
	}
	if c.Chat.StreamIntervalMS < 0 || c.Chat.StreamIntervalMS > 1000 {
		errs = append(errs, ValidationError{"chat.stream_interval_ms", "must be between 0 and 1000"})
	}

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[c.UI.Theme] {
		errs = append(errs, ValidationError{"ui.theme", "must be one of: dark, light, auto"})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{"ui.word_wrap", "must be zero or positive"})
	}

	// Export
	validFormats := map[string]bool{"markdown": true, "json": true}
	if !validFormats[c.Export.Format] {
		errs = append(errs, ValidationError{"export.format", "must be one of: markdown, json"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty or out-of-range fields with default values.
// Useful for configs built programmatically rather than loaded from disk.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = d.Backend.BaseURL
	}
	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.StreamTimeoutSecs < 0 {
		c.Backend.StreamTimeoutSecs = d.Backend.StreamTimeoutSecs
	}
	if c.Backend.StatusPollSecs <= 0 {
		c.Backend.StatusPollSecs = d.Backend.StatusPollSecs
	}
	if c.Backend.MaxRetries < 0 {
		c.Backend.MaxRetries = d.Backend.MaxRetries
	}
	if c.Chat.StreamBatchSize <= 0 {
		c.Chat.StreamBatchSize = d.Chat.StreamBatchSize
	}
	if c.Chat.StreamIntervalMS <= 0 {
		c.Chat.StreamIntervalMS = d.Chat.StreamIntervalMS
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap < 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.Export.Dir == "" {
		c.Export.Dir = d.Export.Dir
	}
	if c.Export.Format == "" {
		c.Export.Format = d.Export.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RAGCHAT_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RAGCHAT_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("RAGCHAT_USE_RAG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.UseRAG = b
		}
	}
	if v := os.Getenv("RAGCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("RAGCHAT_EXPORT_DIR"); v != "" {
		c.Export.Dir = v
	}
}

// =============================================================================
// DYNAMIC ACCESS
// =============================================================================

// Get retrieves a configuration value by dot-notation key, e.g.
// "backend.base_url" or "ui.theme".
func (c *Config) Get(key string) (interface{}, error) {
	v := reflect.ValueOf(c).Elem()
	for _, part := range strings.Split(key, ".") {
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("invalid config key: %s", key)
		}
		want := normalizeFieldName(part)
		v = v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, want)
		})
		if !v.IsValid() {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}
	if v.Kind() == reflect.Struct {
		return nil, fmt.Errorf("config key names a section, not a value: %s", key)
	}
	return v.Interface(), nil
}

// Set updates a configuration value by dot-notation key. The string value
// is converted to the field's type.
func (c *Config) Set(key, value string) error {
	v := reflect.ValueOf(c).Elem()
	for _, part := range strings.Split(key, ".") {
		if v.Kind() != reflect.Struct {
			return fmt.Errorf("invalid config key: %s", key)
		}
		want := normalizeFieldName(part)
		v = v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, want)
		})
		if !v.IsValid() {
			return fmt.Errorf("unknown config key: %s", key)
		}
	}
	if v.Kind() == reflect.Struct {
		return fmt.Errorf("config key names a section, not a value: %s", key)
	}
	if !v.CanSet() {
		return fmt.Errorf("config key is not settable: %s", key)
	}
	return setFieldValue(v, key, value)
}

// normalizeFieldName converts a snake_case or kebab-case key segment into
// the CamelCase shape used for case-insensitive field matching.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// setFieldValue converts a string into the field's kind and assigns it.
func setFieldValue(field reflect.Value, key, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected a boolean, got %q", key, value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", key, value)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: expected a number, got %q", key, value)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("%s: unsupported field type %s", key, field.Kind())
	}
	return nil
}

// GetAllKeys returns every settable dot-notation key, in declaration order.
func GetAllKeys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("toml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		full := tag
		if prefix != "" {
			full = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, full, keys)
			continue
		}
		*keys = append(*keys, full)
	}
}

// =============================================================================
// UTILITIES
// =============================================================================

// Clone returns an independent copy of the configuration.
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}

// String renders the configuration as "key = value" lines for display.
func (c *Config) String() string {
	var b strings.Builder
	for _, key := range GetAllKeys() {
		val, err := c.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s = %v\n", key, val)
	}
	return b.String()
}

// =============================================================================
// GLOBAL CONFIG SINGLETON
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// A load failure falls back to defaults with a warning on stderr.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal re-reads configuration from disk and swaps the global.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
}

// ResetGlobalForTesting clears the global so tests start from a known state.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
	globalConfigMu.Unlock()
}
