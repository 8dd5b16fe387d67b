package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cprwiz/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify cprwiz configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.
List keys (validation.banned_terms, ...) take comma-separated values.

Configuration is stored at ~/.config/cprwiz/config.yaml
Project-specific overrides can be placed in .cprwiz.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return displayAllConfig()
		case 1:
			return displayConfigKey(args[0])
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig() error {
	for _, key := range config.Keys() {
		value, err := configValue(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("\n(project overrides from %s)\n", p)
	}
	return nil
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(key string) error {
	value, err := configValue(strings.ToLower(key))
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

// setConfigKey sets a configuration value in the user config.
func setConfigKey(key, value string) error {
	key = strings.ToLower(key)
	if err := config.Set(key, value); err != nil {
		return err
	}
	if key == "llm.api_key" {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// configValue formats the effective value of key. API keys are masked.
func configValue(key string) (string, error) {
	v, err := config.Get(key)
	if err != nil {
		return "", err
	}
	if key == "llm.api_key" {
		s, _ := v.(string)
		if s == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(s), nil
	}
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ","), nil
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ","), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(val), nil
	}
}
