package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/store"
)

// CheckpointStore implements store.CheckpointStore in the
// generation_step_checkpoints table.
type CheckpointStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(db store.DBTX, logger *slog.Logger) *CheckpointStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointStore{
		db:     db,
		logger: logger.With(slog.String("component", "checkpoint_store")),
	}
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// LoadCheckpoint implements store.CheckpointStore.LoadCheckpoint
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, jobID uuid.UUID, step string) (json.RawMessage, error) {
	var output []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT output FROM generation_step_checkpoints WHERE job_id = $1 AND step_name = $2`,
		jobID, step,
	).Scan(&output)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCheckpointNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load checkpoint",
			slog.String("job_id", jobID.String()),
			slog.String("step", step),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return json.RawMessage(output), nil
}

// SaveCheckpoint implements store.CheckpointStore.SaveCheckpoint
func (s *CheckpointStore) SaveCheckpoint(
	ctx context.Context,
	jobID uuid.UUID,
	step string,
	output json.RawMessage,
) error {
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	if !json.Valid(output) {
		return fmt.Errorf("%w: checkpoint output must be valid JSON", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO generation_step_checkpoints (job_id, step_name, output, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, step_name) DO UPDATE
		SET output = excluded.output, created_at = excluded.created_at
	`
	if _, err := s.db.ExecContext(ctx, query, jobID, step, []byte(output), time.Now().UTC()); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save checkpoint",
			slog.String("job_id", jobID.String()),
			slog.String("step", step),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// ClearCheckpoints implements store.CheckpointStore.ClearCheckpoints
func (s *CheckpointStore) ClearCheckpoints(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM generation_step_checkpoints WHERE job_id = $1`, jobID); err != nil {
		return MapError(err)
	}
	return nil
}

// DeleteOrphans removes checkpoints whose job no longer exists, which is the
// case after terminal results are pruned.
func (s *CheckpointStore) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM generation_step_checkpoints
		WHERE job_id NOT IN (SELECT id FROM generation_results)`)
	if err != nil {
		return 0, MapError(err)
	}
	return rowsAffected(res)
}
