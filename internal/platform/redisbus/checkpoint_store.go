package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/redis/go-redis/v9"
)

const checkpointKeyPrefix = "genjobs:checkpoints:"

// CheckpointStore keeps step outputs in one Redis hash per job, keyed by step
// name. Every save refreshes the hash TTL, so checkpoints of abandoned jobs
// expire on their own.
type CheckpointStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates a CheckpointStore whose hashes expire after ttl.
func NewCheckpointStore(client redis.UniversalClient, ttl time.Duration) *CheckpointStore {
	return &CheckpointStore{client: client, ttl: ttl}
}

func checkpointKey(jobID uuid.UUID) string {
	return checkpointKeyPrefix + jobID.String()
}

// LoadCheckpoint implements store.CheckpointStore.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, jobID uuid.UUID, step string) (json.RawMessage, error) {
	raw, err := s.client.HGet(ctx, checkpointKey(jobID), step).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget checkpoint: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SaveCheckpoint implements store.CheckpointStore.
func (s *CheckpointStore) SaveCheckpoint(
	ctx context.Context,
	jobID uuid.UUID,
	step string,
	output json.RawMessage,
) error {
	if step == "" {
		return fmt.Errorf("%w: step name cannot be empty", store.ErrInvalidEntity)
	}
	if !json.Valid(output) {
		return fmt.Errorf("%w: checkpoint output must be valid JSON", store.ErrInvalidEntity)
	}

	key := checkpointKey(jobID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, step, []byte(output))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoints implements store.CheckpointStore.
func (s *CheckpointStore) ClearCheckpoints(ctx context.Context, jobID uuid.UUID) error {
	if err := s.client.Del(ctx, checkpointKey(jobID)).Err(); err != nil {
		return fmt.Errorf("redis del checkpoints: %w", err)
	}
	return nil
}
