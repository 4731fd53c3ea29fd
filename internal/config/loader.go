// Package config provides configuration management for the odds-watch application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "config/config.yaml"
	envPrefix         = "ODDS_WATCH"
)

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	// Read and expand the configuration file if it exists
	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, continue with defaults and environment variables

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// ODDS_WATCH_REDIS_ADDR overrides redis.addr
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults registers the values the engine was tuned with
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "odds-watch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout_seconds", 5)

	v.SetDefault("cycle.interval_millis", 1000)
	v.SetDefault("cycle.retry_delay_seconds", 10)
	v.SetDefault("cycle.max_retries", 10)
	v.SetDefault("cycle.max_connection_errors", 5)
	v.SetDefault("cycle.stale_cycle_limit", 3600)
	v.SetDefault("cycle.page_timeout_seconds", 30)

	v.SetDefault("tracker.eviction_threshold", 2000)

	v.SetDefault("alerts.violet_max", 1.59)
	v.SetDefault("alerts.red_min", 1.60)
	v.SetDefault("alerts.red_max", 1.63)
	v.SetDefault("alerts.orange_min", 1.64)
	v.SetDefault("alerts.orange_max", 1.68)
	v.SetDefault("alerts.yellow_min", 1.69)
	v.SetDefault("alerts.yellow_max", 1.73)
	v.SetDefault("alerts.store_ceiling", 1.73)
	v.SetDefault("alerts.alert_ceiling", 1.68)

	v.SetDefault("storage.backend", "redis")
	v.SetDefault("storage.list_cap", 2400)

	v.SetDefault("handover.grace_delay_seconds", 60)
	v.SetDefault("handover.stop_retries", 5)
	v.SetDefault("handover.stop_retry_delay_seconds", 60)
	v.SetDefault("handover.run_retries", 5)
	v.SetDefault("handover.run_retry_delay_seconds", 60)
	v.SetDefault("handover.register_attempts", 3)
	v.SetDefault("handover.heartbeat_ttl_seconds", 30)
	v.SetDefault("handover.revoke_channel", "parser-revoke")

	v.SetDefault("telegram.min_interval_millis", 2000)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_timeout_seconds", 30)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("health.port", 8080)

	v.SetDefault("supervision.enabled", true)
	v.SetDefault("supervision.schedule", "@every 5m")
}

// ReloadFromEnv reloads the configuration when ODDS_WATCH_CONFIG_PATH points at another file
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}

	return nil
}
