package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RedisAddrEnv names the Redis server used by integration tests.
const RedisAddrEnv = "GENJOBS_TEST_REDIS_ADDR"

// setupTestRedis connects to the test Redis server or skips the test.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		t.Skipf("%s not set, skipping Redis integration test", RedisAddrEnv)
	}

	client, err := NewClient(context.Background(), config.RedisConfig{Addr: addr, ReadBlock: time.Second})
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testEvent() *events.JobEvent {
	return &events.JobEvent{
		ID:         uuid.New(),
		EventName:  "character/sheet/generate",
		JobID:      uuid.New(),
		ObjectType: "character",
		ObjectID:   "c-1",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	ev := testEvent()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := decodeEvent(redis.XMessage{ID: "1-0", Values: map[string]any{eventField: string(raw)}})
	require.NoError(t, err)
	assert.Equal(t, ev.JobID, got.JobID)
	assert.Equal(t, ev.EventName, got.EventName)

	_, err = decodeEvent(redis.XMessage{ID: "2-0", Values: map[string]any{}})
	assert.Error(t, err)

	_, err = decodeEvent(redis.XMessage{ID: "3-0", Values: map[string]any{eventField: "{"}})
	assert.Error(t, err)

	_, err = decodeEvent(redis.XMessage{ID: "4-0", Values: map[string]any{eventField: `{"event_name":"x"}`}})
	assert.Error(t, err, "events without a job id are rejected")
}

func TestConsumerConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConsumerConfigFrom(config.RedisConfig{
		Stream:       "s",
		Group:        "g",
		Concurrency:  3,
		ClaimMinIdle: time.Minute,
		ReadBlock:    time.Second,
	})
	assert.Equal(t, "s", cfg.Stream)
	assert.Equal(t, "g", cfg.Group)
	assert.NotEmpty(t, cfg.Consumer)
	assert.Equal(t, 3, cfg.Concurrency)

	named := ConsumerConfigFrom(config.RedisConfig{Consumer: "worker-1"})
	assert.Equal(t, "worker-1", named.Consumer)
}

func TestPublisherRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, "unused")
	err := p.EmitEvent(context.Background(), &events.JobEvent{EventName: "x"})
	assert.Error(t, err)
}

func TestStreamDelivery(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	stream := "genjobs:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	var (
		mu       sync.Mutex
		attempts = map[uuid.UUID]int{}
		failOnce = true
	)
	handler := events.EventHandlerFunc(func(ctx context.Context, ev *events.JobEvent) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[ev.JobID]++
		if failOnce {
			failOnce = false
			return errors.New("transient")
		}
		return nil
	})

	consumer := NewConsumer(client, ConsumerConfig{
		Stream:       stream,
		Group:        "test-group",
		Consumer:     "c1",
		Concurrency:  2,
		ClaimMinIdle: 50 * time.Millisecond,
		ReadBlock:    100 * time.Millisecond,
	}, handler, nil)
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx), "existing group is not an error")

	ev := testEvent()
	require.NoError(t, NewPublisher(client, stream).EmitEvent(ctx, ev))

	// First delivery fails and stays pending.
	require.NoError(t, consumer.Poll(ctx))
	pending, err := client.XPending(ctx, stream, "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// After the idle time the entry is reclaimed and acknowledged.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, consumer.Poll(ctx))

	pending, err = client.XPending(ctx, stream, "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	mu.Lock()
	assert.Equal(t, 2, attempts[ev.JobID])
	mu.Unlock()
}

func TestMalformedEntryIsAcknowledged(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	stream := "genjobs:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	called := false
	consumer := NewConsumer(client, ConsumerConfig{
		Stream:      stream,
		Group:       "g",
		Consumer:    "c1",
		Concurrency: 1,
		ReadBlock:   100 * time.Millisecond,
	}, events.EventHandlerFunc(func(context.Context, *events.JobEvent) error {
		called = true
		return nil
	}), nil)
	require.NoError(t, consumer.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{eventField: "not json"},
	}).Err())

	require.NoError(t, consumer.Poll(ctx))
	assert.False(t, called)

	pending, err := client.XPending(ctx, stream, "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestCheckpointStore(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s := NewCheckpointStore(client, time.Minute)

	jobID := uuid.New()
	t.Cleanup(func() { _ = s.ClearCheckpoints(context.Background(), jobID) })

	_, err := s.LoadCheckpoint(ctx, jobID, "calc-abilities")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

	require.NoError(t, s.SaveCheckpoint(ctx, jobID, "calc-abilities", json.RawMessage(`{"str":10}`)))
	require.NoError(t, s.SaveCheckpoint(ctx, jobID, "calc-abilities", json.RawMessage(`{"str":12}`)))

	got, err := s.LoadCheckpoint(ctx, jobID, "calc-abilities")
	require.NoError(t, err)
	assert.JSONEq(t, `{"str":12}`, string(got))

	ttl := client.TTL(ctx, checkpointKey(jobID)).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	assert.ErrorIs(t, s.SaveCheckpoint(ctx, jobID, "", json.RawMessage(`{}`)), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.SaveCheckpoint(ctx, jobID, "x", json.RawMessage(`{`)), store.ErrInvalidEntity)

	require.NoError(t, s.ClearCheckpoints(ctx, jobID))
	_, err = s.LoadCheckpoint(ctx, jobID, "calc-abilities")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
}
