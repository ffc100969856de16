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

// CharacterStore persists the artifacts produced by the character pipelines.
type CharacterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewCharacterStore creates a new CharacterStore.
func NewCharacterStore(db store.DBTX, logger *slog.Logger) *CharacterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CharacterStore{
		db:     db,
		logger: logger.With(slog.String("component", "character_store")),
	}
}

// SaveSheet upserts the character sheet produced by jobID.
func (s *CharacterStore) SaveSheet(ctx context.Context, characterID string, jobID uuid.UUID, sheet json.RawMessage) error {
	if !json.Valid(sheet) {
		return fmt.Errorf("%w: sheet must be valid JSON", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO character_sheets (character_id, job_id, sheet, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (character_id) DO UPDATE
		SET job_id = excluded.job_id, sheet = excluded.sheet, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, characterID, jobID, []byte(sheet), time.Now().UTC()); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save character sheet",
			slog.String("character_id", characterID),
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetSheet returns the stored sheet of a character.
func (s *CharacterStore) GetSheet(ctx context.Context, characterID string) (json.RawMessage, error) {
	var sheet []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT sheet FROM character_sheets WHERE character_id = $1`, characterID,
	).Scan(&sheet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: character sheet %s", store.ErrNotFound, characterID)
		}
		return nil, MapError(err)
	}
	return json.RawMessage(sheet), nil
}

// SaveBackstory upserts the backstory text produced by jobID.
func (s *CharacterStore) SaveBackstory(ctx context.Context, characterID string, jobID uuid.UUID, backstory string) error {
	query := `
		INSERT INTO character_backstories (character_id, job_id, backstory, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (character_id) DO UPDATE
		SET job_id = excluded.job_id, backstory = excluded.backstory, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, characterID, jobID, backstory, time.Now().UTC()); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save backstory",
			slog.String("character_id", characterID),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetBackstory returns the stored backstory of a character.
func (s *CharacterStore) GetBackstory(ctx context.Context, characterID string) (string, error) {
	var backstory string
	err := s.db.QueryRowContext(ctx,
		`SELECT backstory FROM character_backstories WHERE character_id = $1`, characterID,
	).Scan(&backstory)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: backstory %s", store.ErrNotFound, characterID)
		}
		return "", MapError(err)
	}
	return backstory, nil
}
