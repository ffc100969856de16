// Package backstory drafts a character backstory with a language model and
// stores it.
package backstory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/job"
)

// EventName is the event that runs this pipeline.
const EventName = "character/backstory/generate"

// Step names.
const (
	StepDraft = "draft"
	StepSave  = "save"
)

const defaultMaxWords = 180

// Request is the job payload.
type Request struct {
	Name     string   `json:"name"      validate:"required,max=64"`
	Class    string   `json:"class"     validate:"max=32"`
	Race     string   `json:"race"      validate:"max=32"`
	Tone     string   `json:"tone"      validate:"max=32"`
	Hooks    []string `json:"hooks"     validate:"max=5,dive,max=200"`
	MaxWords int      `json:"max_words" validate:"omitempty,gte=20,lte=600"`
}

// Backstory is the final result of the pipeline.
type Backstory struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	Words       int    `json:"words"`
}

// BackstorySaver persists finished backstories.
type BackstorySaver interface {
	SaveBackstory(ctx context.Context, characterID string, jobID uuid.UUID, backstory string) error
}

var prompt = generation.MustPrompt("backstory",
	"You are a fantasy author writing concise character backstories for tabletop role-playing games.",
	`Write a backstory for {{.Name}}{{if .Race}}, a {{.Race}}{{end}}{{if .Class}} {{.Class}}{{end}}.
{{- if .Tone}}
The tone is {{.Tone}}.{{end}}
{{- range .Hooks}}
Work in this plot hook: {{.}}{{end}}`,
	defaultMaxWords)

type builder struct {
	saver     BackstorySaver
	generator generation.Generator
	validate  *validator.Validate
}

// NewPipeline creates the backstory pipeline.
func NewPipeline(saver BackstorySaver, generator generation.Generator) (*job.Pipeline, error) {
	if saver == nil || generator == nil {
		return nil, fmt.Errorf("%w: backstory pipeline needs a saver and a generator", job.ErrInvalidStep)
	}
	b := &builder{saver: saver, generator: generator, validate: validator.New()}

	return job.NewPipeline[Backstory](EventName, "Backstory ready", []job.Step{
		{Name: StepDraft, Message: "Drafted backstory", Run: b.draft},
		{Name: StepSave, Message: "Saved backstory", Run: b.save},
	}, nil)
}

func (b *builder) draft(ctx context.Context, s *job.State) (any, error) {
	in, err := job.DecodePayload[Request](s)
	if err != nil {
		return nil, err
	}
	if err := b.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	req, err := prompt.Render(in)
	if err != nil {
		return nil, err
	}
	if in.MaxWords > 0 {
		req.MaxWords = in.MaxWords
	}

	text, err := b.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("draft backstory: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("draft backstory: %w", generation.ErrInvalidResponse)
	}

	return Backstory{
		CharacterID: s.Job.ObjectID,
		Name:        in.Name,
		Text:        text,
		Words:       len(strings.Fields(text)),
	}, nil
}

func (b *builder) save(ctx context.Context, s *job.State) (any, error) {
	draft, err := job.Decode[Backstory](s, StepDraft)
	if err != nil {
		return nil, err
	}
	if err := b.saver.SaveBackstory(ctx, draft.CharacterID, s.Job.ID, draft.Text); err != nil {
		return nil, fmt.Errorf("save backstory: %w", err)
	}
	return draft, nil
}
