// Package pipelines registers the generation pipelines served by this
// process.
package pipelines

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/job"
	"github.com/phrazzld/genjobs/internal/pipelines/backstory"
	"github.com/phrazzld/genjobs/internal/pipelines/charactersheet"
)

// CharacterStore persists the artifacts of the character pipelines.
type CharacterStore interface {
	SaveSheet(ctx context.Context, characterID string, jobID uuid.UUID, sheet json.RawMessage) error
	SaveBackstory(ctx context.Context, characterID string, jobID uuid.UUID, text string) error
}

// Deps are the collaborators shared by the pipelines.
type Deps struct {
	Characters CharacterStore
	Generator  generation.Generator
}

// NewRegistry builds a registry holding every pipeline.
func NewRegistry(deps Deps) (*job.Registry, error) {
	sheet, err := charactersheet.NewPipeline(deps.Characters, deps.Generator)
	if err != nil {
		return nil, fmt.Errorf("character sheet pipeline: %w", err)
	}
	story, err := backstory.NewPipeline(deps.Characters, deps.Generator)
	if err != nil {
		return nil, fmt.Errorf("backstory pipeline: %w", err)
	}
	return job.NewRegistry(sheet, story)
}
