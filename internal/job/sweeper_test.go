package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orphanCounter struct{ calls atomic.Int32 }

func (o *orphanCounter) DeleteOrphans(ctx context.Context) (int64, error) {
	o.calls.Add(1)
	return 0, nil
}

func storedResult(t *testing.T, status domain.ResultStatus, updated time.Time) *domain.GenerationResult {
	t.Helper()
	r, err := domain.NewGenerationResult(domain.DedupKey{
		EventName: testEvent, ObjectType: "o", ObjectID: uuid.NewString(), ObjectKey: "k",
	}, json.RawMessage(`{}`))
	require.NoError(t, err)
	r.Status = status
	r.CreatedAt = updated
	r.UpdatedAt = updated
	return r
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	results := mocks.NewMockResultStore()

	stale := storedResult(t, domain.ResultStatusPending, now.Add(-time.Hour))
	fresh := storedResult(t, domain.ResultStatusPending, now.Add(-time.Minute))
	oldDone := storedResult(t, domain.ResultStatusComplete, now.Add(-48*time.Hour))
	newDone := storedResult(t, domain.ResultStatusError, now.Add(-time.Hour))
	for _, r := range []*domain.GenerationResult{stale, fresh, oldDone, newDone} {
		results.Put(r)
	}

	emitter := &mocks.MockEventEmitter{}
	orphans := &orphanCounter{}
	sweeper := NewSweeper(results, emitter, orphans, SweeperConfig{
		StaleAge:  30 * time.Minute,
		Retention: 24 * time.Hour,
	}, discardLogger())
	sweeper.now = func() time.Time { return now }

	stats, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Republished)
	assert.Equal(t, int64(1), stats.Pruned)
	assert.Equal(t, int32(1), orphans.calls.Load())

	emitted := emitter.Events()
	require.Len(t, emitted, 1)
	assert.Equal(t, stale.ID, emitted[0].JobID)
	assert.Equal(t, stale.EventName, emitted[0].EventName)

	_, err = results.GetByID(context.Background(), oldDone.ID)
	assert.Error(t, err)
	_, err = results.GetByID(context.Background(), newDone.ID)
	assert.NoError(t, err)
}

func TestSweeper_PublishFailureIsSkipped(t *testing.T) {
	t.Parallel()

	results := mocks.NewMockResultStore()
	results.Put(storedResult(t, domain.ResultStatusPending, time.Now().Add(-time.Hour)))

	emitter := &mocks.MockEventEmitter{Err: errors.New("bus down")}
	sweeper := NewSweeper(results, emitter, nil, SweeperConfig{StaleAge: time.Minute}, discardLogger())

	stats, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Republished)
	assert.Len(t, emitter.Events(), 1)
}

func TestSweeper_RunSweepsImmediately(t *testing.T) {
	t.Parallel()

	results := mocks.NewMockResultStore()
	results.Put(storedResult(t, domain.ResultStatusPending, time.Now().Add(-time.Hour)))

	swept := make(chan struct{}, 1)
	emitter := &mocks.MockEventEmitter{
		EmitEventFn: func(ctx context.Context, event *events.JobEvent) error {
			select {
			case swept <- struct{}{}:
			default:
			}
			return nil
		},
	}

	sweeper := NewSweeper(results, emitter, nil, SweeperConfig{
		StaleAge: time.Minute,
		Interval: time.Hour,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not run on start")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
