package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings holds runner-level options, as opposed to the tasks themselves.
// Precedence (highest to lowest):
// 1. Environment variables (TEQUIO_*)
// 2. .tequio.yaml in the current directory
// 3. Built-in defaults
type Settings struct {
	// GracePeriod is how long a task gets between SIGTERM and SIGKILL
	// during shutdown.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// Plain disables the TUI and streams prefixed lines to stdout.
	Plain bool `mapstructure:"plain"`
	// Verbose enables debug-level operational logging.
	Verbose bool `mapstructure:"verbose"`
	// LogFile overrides where operational logs go while the TUI owns the
	// terminal. Empty means a file under the OS temp dir.
	LogFile string `mapstructure:"log_file"`
}

// LoadSettings loads runner settings from defaults, an optional
// .tequio.yaml, and TEQUIO_* environment variables.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".tequio")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	}

	v.SetEnvPrefix("tequio")
	v.AutomaticEnv()

	cfg := &Settings{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	if cfg.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace_period must be positive, got %s", cfg.GracePeriod)
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("grace_period", "5s")
	v.SetDefault("plain", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_file", "")
}
