package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// ConsumerConfig configures a stream consumer.
type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Concurrency is the number of entries handled at once.
	Concurrency int
	// ClaimMinIdle is how long an entry must sit unacknowledged in another
	// consumer's pending list before it is reclaimed.
	ClaimMinIdle time.Duration
	// ReadBlock bounds each blocking XREADGROUP call.
	ReadBlock time.Duration
}

// ConsumerConfigFrom builds a ConsumerConfig from application settings.
// An empty consumer name is replaced by the host name plus a random suffix.
func ConsumerConfigFrom(cfg config.RedisConfig) ConsumerConfig {
	name := cfg.Consumer
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "genjobs"
		}
		name = host + "-" + strings.Split(uuid.NewString(), "-")[0]
	}
	return ConsumerConfig{
		Stream:       cfg.Stream,
		Group:        cfg.Group,
		Consumer:     name,
		Concurrency:  cfg.Concurrency,
		ClaimMinIdle: cfg.ClaimMinIdle,
		ReadBlock:    cfg.ReadBlock,
	}
}

// Consumer delivers stream entries to an events.EventHandler.
type Consumer struct {
	client  redis.UniversalClient
	cfg     ConsumerConfig
	handler events.EventHandler
	logger  *slog.Logger

	claimCursor string
	lastClaim   time.Time
}

// NewConsumer creates a Consumer. Run must be called to start reading.
func NewConsumer(
	client redis.UniversalClient,
	cfg ConsumerConfig,
	handler events.EventHandler,
	logger *slog.Logger,
) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ReadBlock <= 0 {
		cfg.ReadBlock = 5 * time.Second
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		handler:     handler,
		claimCursor: "0-0",
		logger: logger.With(
			slog.String("component", "redis_consumer"),
			slog.String("stream", cfg.Stream),
			slog.String("consumer", cfg.Consumer)),
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Run reads and handles entries until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	c.logger.Info("stream consumer started", slog.String("group", c.cfg.Group))
	defer c.logger.Info("stream consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("stream poll failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll reclaims idle entries when due, then reads and handles one batch of
// new entries.
func (c *Consumer) Poll(ctx context.Context) error {
	if c.cfg.ClaimMinIdle > 0 && time.Since(c.lastClaim) >= c.cfg.ClaimMinIdle/2 {
		if err := c.reclaim(ctx); err != nil {
			return err
		}
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    int64(c.cfg.Concurrency),
		Block:    c.cfg.ReadBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis xreadgroup: %w", err)
	}

	for _, s := range streams {
		c.handleBatch(ctx, s.Messages)
	}
	return nil
}

// reclaim takes over entries other consumers left unacknowledged for at
// least ClaimMinIdle.
func (c *Consumer) reclaim(ctx context.Context) error {
	c.lastClaim = time.Now()

	msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ClaimMinIdle,
		Start:    c.claimCursor,
		Count:    int64(c.cfg.Concurrency),
	}).Result()
	if err != nil {
		return fmt.Errorf("redis xautoclaim: %w", err)
	}
	c.claimCursor = next

	if len(msgs) > 0 {
		c.logger.Info("reclaimed idle stream entries", slog.Int("count", len(msgs)))
		c.handleBatch(ctx, msgs)
	}
	return nil
}

func (c *Consumer) handleBatch(ctx context.Context, msgs []redis.XMessage) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			c.handle(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

// handle runs one entry. Entries that cannot be decoded are acknowledged
// since no delivery would ever succeed.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	log := c.logger.With(slog.String("entry_id", msg.ID))

	event, err := decodeEvent(msg)
	if err != nil {
		log.Error("dropping malformed stream entry", slog.String("error", err.Error()))
		c.ack(ctx, log, msg.ID)
		return
	}

	log = log.With(slog.String("job_id", event.JobID.String()))
	if err := c.handler.HandleEvent(logger.WithLogger(ctx, log), event); err != nil {
		log.Warn("job not settled, leaving entry pending for redelivery",
			slog.String("error", err.Error()))
		return
	}

	c.ack(ctx, log, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, log *slog.Logger, id string) {
	// Acknowledge even when ctx is done so a finished job is not redelivered.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.client.XAck(ackCtx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		log.Error("failed to acknowledge stream entry", slog.String("error", err.Error()))
	}
}
