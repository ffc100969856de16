package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "GENJOBS"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching for config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly to be seen by Unmarshal.
	for _, key := range []string{"database.url", "redis.addr", "redis.password", "llm.gemini_api_key", "auth.jwt_secret"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-section rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return c.checkCombinations()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.mode", ModeAll)

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("events.backend", BackendMemory)

	v.SetDefault("checkpoints.backend", BackendSQL)
	v.SetDefault("checkpoints.ttl", 24*time.Hour)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "genjobs:events")
	v.SetDefault("redis.group", "genjobs-executors")
	v.SetDefault("redis.consumer", "")
	v.SetDefault("redis.concurrency", 2)
	v.SetDefault("redis.claim_min_idle", 5*time.Minute)
	v.SetDefault("redis.read_block", 5*time.Second)

	v.SetDefault("runner.worker_count", 2)
	v.SetDefault("runner.queue_size", 100)
	v.SetDefault("runner.stale_job_age", 30*time.Minute)
	v.SetDefault("runner.sweep_interval", 5*time.Minute)
	v.SetDefault("runner.sweep_batch_size", 100)
	v.SetDefault("runner.retention", 30*24*time.Hour)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.temperature", 0.7)
}
