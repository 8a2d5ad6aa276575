// Package config loads process configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the eventshift CLI and engine.
type Config struct {
	MappingsPath string       `mapstructure:"mappings_path"`
	TemplatesDir string       `mapstructure:"templates_dir"`
	AccountID    string       `mapstructure:"account_id"`
	Region       string       `mapstructure:"region"`
	Log          LogConfig    `mapstructure:"log"`
	Engine       EngineConfig `mapstructure:"engine"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds transform-engine tuning.
type EngineConfig struct {
	EnforceOCSF       bool   `mapstructure:"enforce_ocsf"`
	JSONPathCacheSize int    `mapstructure:"jsonpath_cache_size"`
	OCSFSchemaDir     string `mapstructure:"ocsf_schema_dir"`
}

// Load reads configuration from file and environment variables.
// Environment variables use the EVENTSHIFT_ prefix with underscores
// for nesting, e.g. EVENTSHIFT_ENGINE_ENFORCE_OCSF.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mappings_path", "mappings.json")
	v.SetDefault("templates_dir", "templates")
	v.SetDefault("account_id", "")
	v.SetDefault("region", "us-east-1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("engine.enforce_ocsf", false)
	v.SetDefault("engine.jsonpath_cache_size", 256)
	v.SetDefault("engine.ocsf_schema_dir", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config.
	v.SetEnvPrefix("EVENTSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
