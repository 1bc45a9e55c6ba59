// Package project implements the .pocketdock/ project directory
// convention: YAML project configuration, per-instance TOML metadata,
// and a JSONL command history log (spec §6).
package project

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the project-level configuration file, read with
// spf13/viper by LoadConfig.
const ConfigFileName = "config.yaml"

// Config is the project-wide configuration resolved from
// .pocketdock/config.yaml. Field set matches spec §6's recognized keys
// exactly; unknown keys are ignored by viper's default unmarshal
// behavior rather than rejected.
type Config struct {
	ProjectName        string `mapstructure:"project_name"`
	DefaultProfile     string `mapstructure:"default_profile"`
	DefaultPersist     bool   `mapstructure:"default_persist"`
	AutoLog            bool   `mapstructure:"auto_log"`
	MaxLogSize         string `mapstructure:"max_log_size"`
	MaxLogsPerInstance int    `mapstructure:"max_logs_per_instance"`
	RetentionDays      int    `mapstructure:"retention_days"`
	Socket             string `mapstructure:"socket"`
	LogLevel           string `mapstructure:"log_level"`
}

// DefaultConfig returns the configuration new projects are initialized
// with.
func DefaultConfig() Config {
	return Config{
		DefaultProfile:     "dev",
		AutoLog:            true,
		MaxLogSize:         "10m",
		MaxLogsPerInstance: 20,
		RetentionDays:      30,
		LogLevel:           "info",
	}
}

// MaxLogSizeBytes parses MaxLogSize (e.g. "10m", "1g") into bytes,
// falling back to DefaultConfig's value if it doesn't parse. See
// parseSize for the accepted grammar.
func (c Config) MaxLogSizeBytes() int64 {
	n, err := parseSize(c.MaxLogSize)
	if err != nil || n <= 0 {
		return 10 << 20
	}
	return n
}

// LoadConfig reads dir/config.yaml via viper and merges it over
// DefaultConfig. A missing file is not an error — callers get the
// defaults back.
func LoadConfig(dir string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("POCKETDOCK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read project config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse project config: %w", err)
	}
	return cfg, nil
}

// parseSize parses a human size string ("512k", "10m", "1g", or a bare
// byte count) into bytes: an integer with an optional k, m, g or b
// suffix. Unlike the CLI's --mem parser it accepts no decimals and no
// two-letter suffixes such as "mb".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "g"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "m"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "b"):
		s = strings.TrimSuffix(s, "b")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed size %q: %w", s, err)
	}
	return n * multiplier, nil
}
