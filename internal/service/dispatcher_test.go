package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/mocks"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheetEvent = "character/sheet/generate"

type catalog map[string]bool

func (c catalog) Has(name string) bool { return c[name] }

func newTestDispatcher() (*Dispatcher, *mocks.MockResultStore, *mocks.MockEventEmitter) {
	results := mocks.NewMockResultStore()
	emitter := &mocks.MockEventEmitter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(results, emitter, catalog{sheetEvent: true}, logger)
	return d, results, emitter
}

func sheetSpec(characterID string) JobSpec {
	return JobSpec{
		EventName:  sheetEvent,
		ObjectType: "character",
		ObjectID:   characterID,
		ObjectKey:  "sheet",
		Payload:    json.RawMessage(`{"class":"wizard","level":3}`),
	}
}

func TestDispatch_CreatesJobAndPublishes(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()

	res, err := d.Dispatch(context.Background(), sheetSpec("c-1"))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, domain.ResultStatusPending, res.Status)

	stored, err := results.GetByID(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "c-1", stored.ObjectID)
	assert.JSONEq(t, `{"class":"wizard","level":3}`, string(stored.Payload))

	published := emitter.Events()
	require.Len(t, published, 1)
	assert.Equal(t, res.JobID, published[0].JobID)
	assert.Equal(t, sheetEvent, published[0].EventName)
}

func TestDispatch_IsIdempotentWhilePending(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()
	ctx := context.Background()

	first, err := d.Dispatch(ctx, sheetSpec("c-1"))
	require.NoError(t, err)

	second, err := d.Dispatch(ctx, sheetSpec("c-1"))
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.True(t, second.Deduplicated)
	assert.Len(t, emitter.Events(), 1, "no second event for a deduplicated job")

	other, err := d.Dispatch(ctx, sheetSpec("c-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, other.JobID)

	// After completion the same key schedules new work.
	require.NoError(t, results.Complete(ctx, first.JobID, "done", json.RawMessage(`{}`)))
	third, err := d.Dispatch(ctx, sheetSpec("c-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, third.JobID)
	assert.False(t, third.Deduplicated)
}

func TestDispatch_ConcurrentCallsShareOneJob(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()

	const callers = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uuid.UUID]int)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Dispatch(context.Background(), sheetSpec("c-race"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[res.JobID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "all callers observe the same job")
	assert.Equal(t, 1, results.Len())
	assert.Len(t, emitter.Events(), 1)
}

func TestDispatch_LostRaceReturnsWinner(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()

	winner, err := domain.NewGenerationResult(sheetSpec("c-1").Key(), nil)
	require.NoError(t, err)

	// The first lookup misses; another dispatcher inserts before our insert.
	calls := 0
	results.FindPendingFn = func(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error) {
		calls++
		if calls == 1 {
			results.Put(winner)
			return nil, store.ErrResultNotFound
		}
		return winner, nil
	}

	res, err := d.Dispatch(context.Background(), sheetSpec("c-1"))
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.JobID)
	assert.True(t, res.Deduplicated)
	assert.Empty(t, emitter.Events())
}

func TestDispatch_Validation(t *testing.T) {
	t.Parallel()
	d, results, _ := newTestDispatcher()

	missingKey := sheetSpec("c-1")
	missingKey.ObjectKey = ""

	badPayload := sheetSpec("c-1")
	badPayload.Payload = json.RawMessage(`{"class":`)

	unknown := sheetSpec("c-1")
	unknown.EventName = "character/portrait/generate"

	tests := []struct {
		name    string
		spec    JobSpec
		wantErr error
	}{
		{"missing object key", missingKey, ErrInvalidJobSpec},
		{"invalid payload", badPayload, ErrInvalidJobSpec},
		{"unknown event", unknown, ErrUnknownEvent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tc.spec)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Zero(t, results.Len())
}

func TestDispatch_StoreUnavailable(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()

	storeDown := errors.New("dial tcp: connection refused")
	results.FindPendingFn = func(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error) {
		return nil, storeDown
	}

	_, err := d.Dispatch(context.Background(), sheetSpec("c-1"))

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "find_pending", dispatchErr.Operation)
	assert.ErrorIs(t, err, storeDown)
	assert.Empty(t, emitter.Events())
}

func TestDispatch_PublishFailureReleasesKey(t *testing.T) {
	t.Parallel()
	d, results, emitter := newTestDispatcher()
	ctx := context.Background()

	emitter.EmitEventFn = func(ctx context.Context, event *events.JobEvent) error {
		return errors.New("redis: connection pool exhausted")
	}

	_, err := d.Dispatch(ctx, sheetSpec("c-1"))
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "publish", dispatchErr.Operation)

	published := emitter.Events()
	require.Len(t, published, 1)
	failed, err := results.GetByID(ctx, published[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusError, failed.Status)
	assert.Contains(t, failed.Error, "dispatch failed")

	// A retry is not blocked by the failed job.
	emitter.EmitEventFn = nil
	res, err := d.Dispatch(ctx, sheetSpec("c-1"))
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, res.JobID)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	d, results, _ := newTestDispatcher()
	ctx := context.Background()

	res, err := d.Dispatch(ctx, sheetSpec("c-1"))
	require.NoError(t, err)

	got, err := d.Status(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, got.ID)

	_, err = d.Status(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)

	results.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error) {
		return nil, errors.New("timeout")
	}
	_, err = d.Status(ctx, res.JobID)
	var dispatchErr *DispatchError
	assert.ErrorAs(t, err, &dispatchErr)
}

func TestNewDispatchError_Dispatcher(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewDispatchError("op", "msg", nil))
	assert.Equal(t, ErrJobNotFound, NewDispatchError("op", "msg", ErrJobNotFound))

	err := NewDispatchError("publish", "event bus unavailable", errors.New("boom"))
	assert.EqualError(t, err, "dispatch publish failed: event bus unavailable: boom")
}
