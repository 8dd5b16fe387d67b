package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no LLM API key configured")

// providerEnv maps providers to the environment variable holding their key.
var providerEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// NeedsAPIKey reports whether provider authenticates with an API key.
// Bedrock uses AWS credentials and offline needs nothing.
func NeedsAPIKey(provider string) bool {
	_, ok := providerEnv[provider]
	return ok
}

// KeyEnvVar returns the environment variable holding the key for provider,
// or "" if the provider takes no key.
func KeyEnvVar(provider string) string {
	return providerEnv[provider]
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: provider environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	if cfg == nil {
		return "", ErrNoAPIKey
	}
	if !NeedsAPIKey(cfg.LLM.Provider) {
		return "", nil
	}

	if key := os.Getenv(providerEnv[cfg.LLM.Provider]); key != "" {
		return key, nil
	}

	if key := configKey(cfg); key != "" {
		return key, nil
	}

	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if !NeedsAPIKey(provider) {
		return nil
	}
	if key == "" {
		return ErrNoAPIKey
	}

	prefix := "sk-"
	if provider == "anthropic" {
		prefix = "sk-ant-"
	}
	if !strings.HasPrefix(key, prefix) {
		return errors.New("invalid API key format: expected '" + prefix + "' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg == nil || !NeedsAPIKey(cfg.LLM.Provider) {
		return KeySourceNone
	}
	if os.Getenv(providerEnv[cfg.LLM.Provider]) != "" {
		return KeySourceEnv
	}
	if configKey(cfg) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}

func configKey(cfg *Config) string {
	key := os.ExpandEnv(cfg.LLM.APIKey)
	if key == "" || strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
