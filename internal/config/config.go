package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/gemini"
)

// Environment variables that override the file configuration
const (
	EnvAPIKey = "GEMINI_API_KEY"
	EnvModel  = "GEMINI_IMAGE_MODEL"
	EnvAddr   = "ARCH_DESIGNER_ADDR"
)

// Keyring entry holding the Gemini API key
const (
	KeyringService = "arch-designer"
	KeyringUser    = "gemini-api-key"
)

// ErrNoAPIKey is returned when no API key is found in any source
var ErrNoAPIKey = errors.New("no Gemini API key: set " + EnvAPIKey + " or run 'arch-designer auth set-key'")

// Config holds the application configuration
type Config struct {
	Editor     EditorConfig     `json:"editor"`
	Generation GenerationConfig `json:"generation"`
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Log        LogConfig        `json:"log"`
}

// EditorConfig holds configuration for the crop engine
type EditorConfig struct {
	MaxCanvasArea int `json:"max_canvas_area"`
}

// GenerationConfig holds configuration for the image generation backend
type GenerationConfig struct {
	Model              string `json:"model"`
	APIKey             string `json:"api_key,omitempty"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	MinIntervalSeconds int    `json:"min_interval_seconds"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Addr                string `json:"addr"`
	SessionTTLMinutes   int    `json:"session_ttl_minutes"`
	MaxUploadMB         int    `json:"max_upload_mb"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

// StorageConfig holds configuration for local persistence
type StorageConfig struct {
	PrefsPath string `json:"prefs_path"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			MaxCanvasArea: cropper.DefaultMaxCanvasArea,
		},
		Generation: GenerationConfig{
			Model:              gemini.DefaultModel,
			TimeoutSeconds:     int(gemini.DefaultTimeout / time.Second),
			MinIntervalSeconds: 0,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			SessionTTLMinutes:   60,
			MaxUploadMB:         20,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 180,
		},
		Storage: StorageConfig{
			PrefsPath: filepath.Join(configDir(), "prefs.db"),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Load reads the file at path when it exists, falls back to defaults
// otherwise, and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadFromFile(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file. The API key is never
// written.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.Generation.APIKey = ""
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.Generation.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		c.Generation.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvAddr)); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Editor.MaxCanvasArea < 1 {
		return fmt.Errorf("editor.max_canvas_area must be positive")
	}

	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model cannot be empty")
	}

	if c.Generation.TimeoutSeconds < 1 {
		return fmt.Errorf("generation.timeout_seconds must be positive")
	}

	if c.Generation.MinIntervalSeconds < 0 {
		return fmt.Errorf("generation.min_interval_seconds cannot be negative")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.SessionTTLMinutes < 1 {
		return fmt.Errorf("server.session_ttl_minutes must be positive")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}

	return nil
}

// Timeout returns the generation request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

// MinInterval returns the minimum spacing between generation requests
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Generation.MinIntervalSeconds) * time.Second
}

// SessionTTL returns how long an idle HTTP session is kept
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

// ResolveAPIKey returns the configured key, falling back to the OS keyring
func (c *Config) ResolveAPIKey() (string, error) {
	if c.Generation.APIKey != "" {
		return c.Generation.APIKey, nil
	}
	key, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("failed to read API key from keyring: %w", err)
	}
	return key, nil
}

// SaveAPIKey stores the Gemini API key in the OS keyring
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringUser, key); err != nil {
		return fmt.Errorf("failed to save API key to keyring: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the stored API key
func DeleteAPIKey() error {
	if err := keyring.Delete(KeyringService, KeyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(configDir(), "config.json")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "arch-designer")
}
