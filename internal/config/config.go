package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// StoreConfig holds sqlite and snapshot settings.
type StoreConfig struct {
	Path    string        `mapstructure:"path"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// PAGEGEN_, so store.path becomes PAGEGEN_STORE_PATH. An explicit path wins
// over PAGEGEN_CONFIG; a missing default config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("store.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "pagegen", "pagegen.db"))
	v.SetDefault("store.key", "generator-state")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("server.port", 8888)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv("PAGEGEN_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pagegen"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PAGEGEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
