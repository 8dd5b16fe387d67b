package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watch re-reads the config file at path whenever it changes and passes the
// decoded result to onChange. Decoding failures are logged and the previous
// configuration stays in effect.
//
// viper offers no way to stop a watch, so Watch is meant to be called once
// per process.
func Watch(path string, logger *zap.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// WatchPath returns the file Watch should follow: the project config when
// present, otherwise the user config if it exists, otherwise "".
func WatchPath() string {
	if p := findProjectConfig(); p != "" {
		return p
	}
	if p := GetUserConfigPath(); fileExists(p) {
		return p
	}
	return ""
}
