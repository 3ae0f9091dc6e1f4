// Package config loads engine configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the tunables of the activation engine.
type Config struct {
	DataDir string
	Log     LogConfig
	Driver  DriverConfig
}

// LogConfig controls daemon log output.
type LogConfig struct {
	Path      string
	ErrorPath string
	Level     string
}

// DriverConfig controls the activation driver's trigger timing.
type DriverConfig struct {
	// ImminentLookahead bounds the in-process short-horizon timer: only a
	// schedule starting within this window arms it.
	ImminentLookahead time.Duration

	// DefaultWakeHorizon is the background wake fallback deadline used
	// when no schedule transition exists.
	DefaultWakeHorizon time.Duration

	// MaxWakeHorizon caps how far out the background wake may be armed;
	// the platform's grants are advisory and coarse anyway.
	MaxWakeHorizon time.Duration
}

// Load reads configuration from SCHEDMON_* environment variables with an
// optional .env file, falling back to defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}
	cfg.DataDir = v.GetString("SCHEDMON_DATA_DIR")
	cfg.Log = LogConfig{
		Path:      v.GetString("SCHEDMON_LOG_PATH"),
		ErrorPath: v.GetString("SCHEDMON_ERROR_LOG_PATH"),
		Level:     v.GetString("SCHEDMON_LOG_LEVEL"),
	}
	cfg.Driver = DriverConfig{
		ImminentLookahead:  parseDuration(v.GetString("SCHEDMON_IMMINENT_LOOKAHEAD"), 30*time.Minute),
		DefaultWakeHorizon: parseDuration(v.GetString("SCHEDMON_DEFAULT_WAKE_HORIZON"), 15*time.Minute),
		MaxWakeHorizon:     parseDuration(v.GetString("SCHEDMON_MAX_WAKE_HORIZON"), time.Hour),
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/var/tmp"
	}
	v.SetDefault("SCHEDMON_DATA_DIR", filepath.Join(home, ".schedmon"))
	v.SetDefault("SCHEDMON_LOG_PATH", "/var/tmp/schedmon.log")
	v.SetDefault("SCHEDMON_ERROR_LOG_PATH", "/var/tmp/schedmon.error.log")
	v.SetDefault("SCHEDMON_LOG_LEVEL", "info")
	v.SetDefault("SCHEDMON_IMMINENT_LOOKAHEAD", "30m")
	v.SetDefault("SCHEDMON_DEFAULT_WAKE_HORIZON", "15m")
	v.SetDefault("SCHEDMON_MAX_WAKE_HORIZON", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
