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
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/store"
)

const resultColumns = `id, event_name, object_type, object_id, object_key, status, step, step_index,
	message, payload, result, error_message, created_at, updated_at`

// ResultStore implements the store.ResultStore interface on database/sql.
type ResultStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewResultStore creates a new ResultStore.
// It validates that db is not nil.
func NewResultStore(db *sql.DB, logger *slog.Logger) *ResultStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultStore{
		db:     db,
		logger: logger.With(slog.String("component", "result_store")),
	}
}

// Ensure ResultStore implements store.ResultStore interface
var _ store.ResultStore = (*ResultStore)(nil)

// CreatePending implements store.ResultStore.CreatePending
func (s *ResultStore) CreatePending(ctx context.Context, result *domain.GenerationResult) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := result.Validate(); err != nil {
		log.Warn("invalid generation result", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if result.Status != domain.ResultStatusPending {
		return fmt.Errorf("%w: new results must be pending", store.ErrInvalidEntity)
	}

	payload := []byte(result.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO generation_results (id, event_name, object_type, object_id, object_key,
			status, step, step_index, message, payload, result, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.ExecContext(ctx, query,
		result.ID,
		result.EventName,
		result.ObjectType,
		result.ObjectID,
		result.ObjectKey,
		string(result.Status),
		result.Step,
		result.StepIndex,
		result.Message,
		payload,
		nullableJSON(result.Result),
		result.Error,
		result.CreatedAt.UTC(),
		result.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("pending result already exists for key",
				slog.String("dedup_key", result.Key().String()))
			return fmt.Errorf("%w: %s", store.ErrPendingResultExists, result.Key())
		}
		log.Error("failed to insert generation result",
			slog.String("job_id", result.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("pending generation result created",
		slog.String("job_id", result.ID.String()),
		slog.String("event_name", result.EventName))
	return nil
}

// FindPending implements store.ResultStore.FindPending
func (s *ResultStore) FindPending(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error) {
	query := `SELECT ` + resultColumns + `
		FROM generation_results
		WHERE event_name = $1 AND object_type = $2 AND object_id = $3 AND object_key = $4
			AND status = 'pending'`

	row := s.db.QueryRowContext(ctx, query, key.EventName, key.ObjectType, key.ObjectID, key.ObjectKey)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to find pending result",
			slog.String("dedup_key", key.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return result, nil
}

// GetByID implements store.ResultStore.GetByID
func (s *ResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error) {
	result, err := getByID(ctx, s.db, id)
	if err != nil && !errors.Is(err, store.ErrResultNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get generation result",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
	}
	return result, err
}

// UpdateProgress implements store.ResultStore.UpdateProgress
func (s *ResultStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress store.Progress) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if progress.StepIndex < 0 {
		return fmt.Errorf("%w: negative step index", store.ErrInvalidEntity)
	}
	if len(progress.Partial) > 0 && !json.Valid(progress.Partial) {
		return fmt.Errorf("%w: partial result must be valid JSON", store.ErrInvalidEntity)
	}

	query := `
		UPDATE generation_results
		SET step = $1, step_index = $2, message = $3, result = COALESCE($4, result), updated_at = $5
		WHERE id = $6 AND status = 'pending' AND step_index <= $7
	`

	res, err := s.db.ExecContext(ctx, query,
		progress.Step,
		progress.StepIndex,
		progress.Message,
		nullableJSON(progress.Partial),
		time.Now().UTC(),
		id,
		progress.StepIndex,
	)
	if err != nil {
		log.Error("failed to update progress",
			slog.String("job_id", id.String()),
			slog.String("step", progress.Step),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.explainMiss(ctx, s.db, id, true)
	}

	log.Debug("progress recorded",
		slog.String("job_id", id.String()),
		slog.String("step", progress.Step),
		slog.Int("step_index", progress.StepIndex))
	return nil
}

// Complete implements store.ResultStore.Complete.
// The transition and the removal of the job's step checkpoints happen in one
// transaction.
func (s *ResultStore) Complete(ctx context.Context, id uuid.UUID, message string, result json.RawMessage) error {
	if len(result) > 0 && !json.Valid(result) {
		return fmt.Errorf("%w: result must be valid JSON", store.ErrInvalidEntity)
	}

	query := `
		UPDATE generation_results
		SET status = 'complete', message = $1, result = $2, error_message = '', updated_at = $3
		WHERE id = $4 AND status = 'pending'
	`
	return s.finish(ctx, id, domain.ResultStatusComplete, query, message, nullableJSON(result), time.Now().UTC(), id)
}

// Fail implements store.ResultStore.Fail
func (s *ResultStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE generation_results
		SET status = 'error', error_message = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	return s.finish(ctx, id, domain.ResultStatusError, query, message, time.Now().UTC(), id)
}

// finish runs a terminal transition and clears SQL checkpoints of the job.
func (s *ResultStore) finish(
	ctx context.Context,
	id uuid.UUID,
	status domain.ResultStatus,
	query string,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return MapError(err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return s.explainMiss(ctx, tx, id, false)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM generation_step_checkpoints WHERE job_id = $1`, id); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotPending) || errors.Is(err, store.ErrResultNotFound) {
			log.Warn("terminal transition refused",
				slog.String("job_id", id.String()),
				slog.String("target_status", string(status)),
				slog.String("reason", err.Error()))
		} else {
			log.Error("failed to finish generation result",
				slog.String("job_id", id.String()),
				slog.String("target_status", string(status)),
				slog.String("error", err.Error()))
		}
		return err
	}

	log.Info("generation result finished",
		slog.String("job_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// explainMiss reads the record a conditional update did not touch and maps
// its state to the matching store error.
func (s *ResultStore) explainMiss(ctx context.Context, q store.DBTX, id uuid.UUID, progress bool) error {
	current, err := getByID(ctx, q, id)
	if err != nil {
		return err
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", store.ErrNotPending, id, current.Status)
	}
	if progress {
		return fmt.Errorf("%w: job %s is at step %d", store.ErrStaleProgress, id, current.StepIndex)
	}
	return fmt.Errorf("%w: job %s", store.ErrUpdateFailed, id)
}

// ListPending implements store.ResultStore.ListPending
func (s *ResultStore) ListPending(
	ctx context.Context,
	updatedBefore time.Time,
	limit int,
) ([]*domain.GenerationResult, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + resultColumns + `
		FROM generation_results
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, updatedBefore.UTC(), limit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list pending results",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("generation_result", "list", "query pending", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var results []*domain.GenerationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation results: %w", err)
	}

	return results, nil
}

// DeleteTerminalBefore implements store.ResultStore.DeleteTerminalBefore
func (s *ResultStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM generation_results WHERE status <> 'pending' AND updated_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to prune generation results",
			slog.String("error", err.Error()))
		return 0, store.NewStoreError("generation_result", "delete", "prune terminal", MapError(err))
	}
	return rowsAffected(res)
}

func getByID(ctx context.Context, q store.DBTX, id uuid.UUID) (*domain.GenerationResult, error) {
	query := `SELECT ` + resultColumns + ` FROM generation_results WHERE id = $1`

	result, err := scanResult(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		return nil, MapError(err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*domain.GenerationResult, error) {
	var (
		r       domain.GenerationResult
		status  string
		payload []byte
		result  []byte
	)

	err := row.Scan(
		&r.ID,
		&r.EventName,
		&r.ObjectType,
		&r.ObjectID,
		&r.ObjectKey,
		&status,
		&r.Step,
		&r.StepIndex,
		&r.Message,
		&payload,
		&result,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.ResultStatus(status)
	if len(payload) > 0 {
		r.Payload = json.RawMessage(payload)
	}
	if len(result) > 0 {
		r.Result = json.RawMessage(result)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()

	return &r, nil
}

// nullableJSON maps an empty document to SQL NULL.
func nullableJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
