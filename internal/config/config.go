// Package config handles configuration loading and management for cprwiz.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CPRWIZ_LLM_PROVIDER.
const EnvPrefix = "CPRWIZ"

// ProjectConfigName is the project-level override file name.
const ProjectConfigName = ".cprwiz.yaml"

// Config holds all configuration for cprwiz.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Validation ValidationConfig `mapstructure:"validation"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Drafts     DraftsConfig     `mapstructure:"drafts"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	AWSRegion        string        `mapstructure:"aws_region"`
	AWSProfile       string        `mapstructure:"aws_profile"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	ExampleMaxTokens int           `mapstructure:"example_max_tokens"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
}

// ValidationConfig tunes the section validators.
type ValidationConfig struct {
	// ExampleThreshold is the attempt number from which a failing verdict
	// carries a generated example.
	ExampleThreshold int `mapstructure:"example_threshold"`
	// MaxParallel bounds concurrent semantic calls for Results items.
	MaxParallel int `mapstructure:"max_parallel"`
	// Rule lists. Empty means the built-in list.
	BannedTerms     []string `mapstructure:"banned_terms"`
	VagueVerbs      []string `mapstructure:"vague_verbs"`
	CompletionVerbs []string `mapstructure:"completion_verbs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// DraftsConfig selects the draft cache backend.
type DraftsConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CPRWIZ_LLM_PROVIDER, ...)
// 2. Project config (.cprwiz.yaml in current directory or parent)
// 3. User config (~/.config/cprwiz/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return v, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	cfg.Drafts.Dir = expandEnv(cfg.Drafts.Dir)
	cfg.Log.File = expandEnv(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting outside its allowed values.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "bedrock", "offline":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	switch c.Storage.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch c.Drafts.Backend {
	case "memory", "file":
	default:
		return fmt.Errorf("drafts.backend: unknown backend %q", c.Drafts.Backend)
	}
	if c.LLM.MaxTokens <= 0 || c.LLM.ExampleMaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens and llm.example_max_tokens must be positive")
	}
	if c.Validation.ExampleThreshold < 1 {
		return fmt.Errorf("validation.example_threshold must be at least 1")
	}
	if c.Validation.MaxParallel < 1 {
		return fmt.Errorf("validation.max_parallel must be at least 1")
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Keys lists every recognised configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of key after all sources are merged.
func Get(key string) (any, error) {
	if !knownKey(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// Set writes key=value to the user config file, creating it if needed.
func Set(key, value string) error {
	if !knownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	if strings.Contains(value, ",") && isListKey(key) {
		v.Set(key, strings.Split(value, ","))
	} else {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("writing user config: %w", err)
	}
	return nil
}

func knownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func isListKey(key string) bool {
	switch key {
	case "validation.banned_terms", "validation.vague_verbs", "validation.completion_verbs":
		return true
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	// Empty selects the provider default (gpt-4o-mini, claude-haiku-4-5).
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.example_max_tokens", 200)
	v.SetDefault("llm.call_timeout", "30s")

	// Validation defaults
	v.SetDefault("validation.example_threshold", 3)
	v.SetDefault("validation.max_parallel", 4)
	v.SetDefault("validation.banned_terms", []string{})
	v.SetDefault("validation.vague_verbs", []string{})
	v.SetDefault("validation.completion_verbs", []string{})

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "90s")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(getDataDir(), "cprwiz.db"))

	// Draft cache defaults
	v.SetDefault("drafts.backend", "memory")
	v.SetDefault("drafts.dir", filepath.Join(getDataDir(), "drafts"))

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.development", false)
}

// getUserConfigDir returns the XDG config directory for cprwiz.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cprwiz")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "cprwiz")
	}
	return filepath.Join(home, ".config", "cprwiz")
}

// getDataDir returns the XDG data directory for cprwiz.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "cprwiz")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "cprwiz")
	}
	return filepath.Join(home, ".local", "share", "cprwiz")
}

// findProjectConfig searches for .cprwiz.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:         "openai",
			MaxTokens:        1000,
			ExampleMaxTokens: 200,
			CallTimeout:      30 * time.Second,
		},
		Validation: ValidationConfig{
			ExampleThreshold: 3,
			MaxParallel:      4,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 90 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(getDataDir(), "cprwiz.db"),
		},
		Drafts: DraftsConfig{
			Backend: "memory",
			Dir:     filepath.Join(getDataDir(), "drafts"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
