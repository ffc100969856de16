package sqlstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/platform/sqlstore"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/phrazzld/genjobs/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStore(t *testing.T) {
	t.Parallel()
	for _, driver := range testdb.Drivers() {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db := testdb.Open(t, driver)
			checkpoints := sqlstore.NewCheckpointStore(db, nil)
			jobID := uuid.New()

			_, err := checkpoints.LoadCheckpoint(ctx, jobID, "calc-abilities")
			assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

			require.NoError(t, checkpoints.SaveCheckpoint(ctx, jobID, "calc-abilities", json.RawMessage(`{"str":10}`)))
			require.NoError(t, checkpoints.SaveCheckpoint(ctx, jobID, "calc-abilities", json.RawMessage(`{"str":14}`)))
			require.NoError(t, checkpoints.SaveCheckpoint(ctx, jobID, "calc-skills", json.RawMessage(`["stealth"]`)))

			out, err := checkpoints.LoadCheckpoint(ctx, jobID, "calc-abilities")
			require.NoError(t, err)
			assert.JSONEq(t, `{"str":14}`, string(out), "latest save wins")

			assert.Error(t, checkpoints.SaveCheckpoint(ctx, jobID, "bad", json.RawMessage(`{`)))

			require.NoError(t, checkpoints.ClearCheckpoints(ctx, jobID))
			_, err = checkpoints.LoadCheckpoint(ctx, jobID, "calc-skills")
			assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
		})
	}
}

func TestResultStore_FinishClearsCheckpoints(t *testing.T) {
	t.Parallel()
	for _, driver := range testdb.Drivers() {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db := testdb.Open(t, driver)
			results := sqlstore.NewResultStore(db, nil)
			checkpoints := sqlstore.NewCheckpointStore(db, nil)

			r := newPending(t, uniqueKey())
			require.NoError(t, results.CreatePending(ctx, r))
			require.NoError(t, checkpoints.SaveCheckpoint(ctx, r.ID, "draft", json.RawMessage(`"text"`)))

			require.NoError(t, results.Fail(ctx, r.ID, "boom"))

			_, err := checkpoints.LoadCheckpoint(ctx, r.ID, "draft")
			assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

			orphan := uuid.New()
			require.NoError(t, checkpoints.SaveCheckpoint(ctx, orphan, "draft", json.RawMessage(`"x"`)))
			n, err := checkpoints.DeleteOrphans(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(1))
		})
	}
}

func TestCharacterStore(t *testing.T) {
	t.Parallel()
	for _, driver := range testdb.Drivers() {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db := testdb.Open(t, driver)
			characters := sqlstore.NewCharacterStore(db, nil)
			characterID := uuid.NewString()

			_, err := characters.GetSheet(ctx, characterID)
			assert.True(t, store.IsNotFoundError(err))

			require.NoError(t, characters.SaveSheet(ctx, characterID, uuid.New(), json.RawMessage(`{"level":1}`)))
			require.NoError(t, characters.SaveSheet(ctx, characterID, uuid.New(), json.RawMessage(`{"level":2}`)))

			sheet, err := characters.GetSheet(ctx, characterID)
			require.NoError(t, err)
			assert.JSONEq(t, `{"level":2}`, string(sheet))

			require.NoError(t, characters.SaveBackstory(ctx, characterID, uuid.New(), "Born in a storm."))
			story, err := characters.GetBackstory(ctx, characterID)
			require.NoError(t, err)
			assert.Equal(t, "Born in a storm.", story)
		})
	}
}
