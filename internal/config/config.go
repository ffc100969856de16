package config

import (
	"errors"
	"fmt"
	"time"
)

// Server modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Events      EventsConfig      `mapstructure:"events" validate:"required"`
	Checkpoints CheckpointsConfig `mapstructure:"checkpoints" validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Runner      RunnerConfig      `mapstructure:"runner" validate:"required"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
	// Mode selects which halves of the system this process runs:
	// the HTTP API, the step executor, or both.
	Mode string `mapstructure:"mode" validate:"required,oneof=api worker all"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver is the database/sql driver name: "pgx" or "sqlite3".
	Driver          string        `mapstructure:"driver" validate:"required,oneof=pgx sqlite3"`
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// EventsConfig selects the event bus between dispatcher and executor.
type EventsConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory redis"`
}

// CheckpointsConfig selects where memoized step outputs live.
type CheckpointsConfig struct {
	Backend string        `mapstructure:"backend" validate:"required,oneof=sql redis"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// RedisConfig contains the Redis connection and stream settings.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	Stream       string        `mapstructure:"stream" validate:"required"`
	Group        string        `mapstructure:"group" validate:"required"`
	Consumer     string        `mapstructure:"consumer"`
	Concurrency  int           `mapstructure:"concurrency" validate:"gte=1"`
	ClaimMinIdle time.Duration `mapstructure:"claim_min_idle" validate:"gt=0"`
	ReadBlock    time.Duration `mapstructure:"read_block" validate:"gt=0"`
}

// RunnerConfig controls the in-process worker queue and the recovery sweeper.
type RunnerConfig struct {
	WorkerCount    int           `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gte=1"`
	StaleJobAge    time.Duration `mapstructure:"stale_job_age" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size" validate:"gte=1"`
	// Retention is how long terminal results are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
// Generation falls back to a local generator when GeminiAPIKey is empty.
type LLMConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	ModelName         string  `mapstructure:"model_name" validate:"required"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"gte=0"`
	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// AuthConfig contains API authentication settings. An empty JWTSecret
// disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// ErrInvalidCombination is returned when individually valid settings
// cannot work together.
var ErrInvalidCombination = errors.New("invalid configuration combination")

// checkCombinations validates rules that span several sections.
func (c *Config) checkCombinations() error {
	if c.Events.Backend == BackendMemory && c.Server.Mode != ModeAll {
		return fmt.Errorf("%w: events.backend=memory requires server.mode=all (got %q)",
			ErrInvalidCombination, c.Server.Mode)
	}

	usesRedis := c.Events.Backend == BackendRedis || c.Checkpoints.Backend == BackendRedis
	if usesRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when a redis backend is selected",
			ErrInvalidCombination)
	}

	return nil
}
