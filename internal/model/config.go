package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultUpdateIntervalMinutes is the poll interval used when no settings
// have been saved.
const DefaultUpdateIntervalMinutes = 5

// Settings holds the user-tunable runtime settings. Saving settings also
// reprograms the update scheduler.
type Settings struct {
	UpdateIntervalMinutes int `json:"updateInterval" mapstructure:"update_interval_minutes" yaml:"update_interval_minutes"`
}

// DefaultSettings returns the settings used before any explicit save.
func DefaultSettings() Settings {
	return Settings{UpdateIntervalMinutes: DefaultUpdateIntervalMinutes}
}

// ProviderOverride lets a deployment supply its own OAuth client id for a
// provider without rebuilding the binary.
type ProviderOverride struct {
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// SocketPath is where the control channel listens.
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"`

	// BadgeEnabled controls whether the desktop badge is painted.
	BadgeEnabled bool `mapstructure:"badge_enabled" yaml:"badge_enabled"`

	// Providers maps provider ids to per-deployment overrides.
	Providers map[string]ProviderOverride `mapstructure:"providers" yaml:"providers"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailbadge/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbadge", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := filepath.Dir(DefaultConfigPath())
	return &AppConfig{
		DBPath:       filepath.Join(dir, "mailbadge.db"),
		SocketPath:   filepath.Join(dir, "mailbadge.sock"),
		BadgeEnabled: true,
		Providers:    map[string]ProviderOverride{},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("socket_path", defaults.SocketPath)
	v.SetDefault("badge_enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("socket_path", cfg.SocketPath)
	v.Set("badge_enabled", cfg.BadgeEnabled)
	v.Set("providers", cfg.Providers)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
