package redisbus

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/genjobs/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to the configured Redis server and verifies it with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
		// Blocking reads must outlive the stream read timeout.
		ReadTimeout: cfg.ReadBlock + 5*time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
