package charactersheet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/job"
	"github.com/phrazzld/genjobs/internal/platform/logger"
)

// EventName is the event that runs this pipeline.
const EventName = "character/sheet/generate"

// Step names.
const (
	StepAbilities = "calc-abilities"
	StepSkills    = "calc-skills"
	StepSave      = "save"
)

// Request is the job payload.
type Request struct {
	Name  string `json:"name"  validate:"required,max=64"`
	Class string `json:"class" validate:"required"`
	Race  string `json:"race"  validate:"max=32"`
	Level int    `json:"level" validate:"gte=1,lte=20"`
}

// Abilities maps ability names (str, dex, ...) to scores.
type Abilities map[string]int

// Skill is one computed skill bonus.
type Skill struct {
	Name       string `json:"name"`
	Ability    string `json:"ability"`
	Bonus      int    `json:"bonus"`
	Proficient bool   `json:"proficient"`
}

// Sheet is the final result of the pipeline.
type Sheet struct {
	CharacterID      string         `json:"character_id"`
	Name             string         `json:"name"`
	Class            string         `json:"class"`
	Race             string         `json:"race,omitempty"`
	Level            int            `json:"level"`
	Abilities        Abilities      `json:"abilities"`
	Modifiers        map[string]int `json:"modifiers"`
	ProficiencyBonus int            `json:"proficiency_bonus"`
	HitPoints        int            `json:"hit_points"`
	Skills           []Skill        `json:"skills"`
	SkillNotes       string         `json:"skill_notes,omitempty"`
}

// SheetSaver persists finished sheets.
type SheetSaver interface {
	SaveSheet(ctx context.Context, characterID string, jobID uuid.UUID, sheet json.RawMessage) error
}

type abilitiesOutput struct {
	Request   Request        `json:"request"`
	Abilities Abilities      `json:"abilities"`
	Modifiers map[string]int `json:"modifiers"`
	HitPoints int            `json:"hit_points"`
}

type skillsOutput struct {
	ProficiencyBonus int     `json:"proficiency_bonus"`
	Skills           []Skill `json:"skills"`
	Notes            string  `json:"notes,omitempty"`
}

var skillNotesPrompt = generation.MustPrompt("skills",
	"You write short, flavorful notes for tabletop role-playing character sheets.",
	`Describe in one or two sentences how {{.Name}}, a level {{.Level}} {{with .Race}}{{.}} {{end}}{{.Class}}, `+
		`puts their best skills to use: {{.Top}}.`,
	40)

type builder struct {
	saver     SheetSaver
	generator generation.Generator
	validate  *validator.Validate
}

// NewPipeline creates the character sheet pipeline. generator writes the
// flavor notes of the skills step.
func NewPipeline(saver SheetSaver, generator generation.Generator) (*job.Pipeline, error) {
	if saver == nil || generator == nil {
		return nil, fmt.Errorf("%w: character sheet pipeline needs a saver and a generator", job.ErrInvalidStep)
	}
	b := &builder{saver: saver, generator: generator, validate: validator.New()}

	return job.NewPipeline[Sheet](EventName, "Character sheet ready", []job.Step{
		{Name: StepAbilities, Message: "Calculated ability scores", Run: b.calcAbilities},
		{Name: StepSkills, Message: "Calculated skills", Timeout: 2 * time.Minute, Run: b.calcSkills},
		{Name: StepSave, Message: "Saved character sheet", Run: b.save},
	}, nil)
}

func (b *builder) calcAbilities(ctx context.Context, s *job.State) (any, error) {
	req, err := job.DecodePayload[Request](s)
	if err != nil {
		return nil, err
	}
	if err := b.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	req.Class = strings.ToLower(req.Class)
	req.Race = strings.ToLower(req.Race)

	scores, err := AbilityScores(req.Class, req.Race, req.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	hp, err := HitPoints(req.Class, req.Level, scores[CON])
	if err != nil {
		return nil, err
	}

	mods := make(map[string]int, len(scores))
	for ability, score := range scores {
		mods[ability] = Modifier(score)
	}

	logger.FromContext(ctx).Debug("ability scores calculated",
		slog.String("class", req.Class),
		slog.Int("level", req.Level))

	return abilitiesOutput{Request: req, Abilities: scores, Modifiers: mods, HitPoints: hp}, nil
}

func (b *builder) calcSkills(ctx context.Context, s *job.State) (any, error) {
	in, err := job.Decode[abilitiesOutput](s, StepAbilities)
	if err != nil {
		return nil, err
	}

	skills, err := SkillList(in.Request.Class, in.Request.Level, in.Abilities)
	if err != nil {
		return nil, err
	}

	var top []string
	for _, skill := range skills {
		if skill.Proficient {
			top = append(top, skill.Name)
		}
	}

	req, err := skillNotesPrompt.Render(map[string]any{
		"Name":  in.Request.Name,
		"Level": in.Request.Level,
		"Race":  in.Request.Race,
		"Class": in.Request.Class,
		"Top":   strings.Join(top, ", "),
	})
	if err != nil {
		return nil, err
	}
	notes, err := b.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("skill notes: %w", err)
	}

	return skillsOutput{
		ProficiencyBonus: ProficiencyBonus(in.Request.Level),
		Skills:           skills,
		Notes:            strings.TrimSpace(notes),
	}, nil
}

func (b *builder) save(ctx context.Context, s *job.State) (any, error) {
	abilities, err := job.Decode[abilitiesOutput](s, StepAbilities)
	if err != nil {
		return nil, err
	}
	skills, err := job.Decode[skillsOutput](s, StepSkills)
	if err != nil {
		return nil, err
	}

	sheet := Sheet{
		CharacterID:      s.Job.ObjectID,
		Name:             abilities.Request.Name,
		Class:            abilities.Request.Class,
		Race:             abilities.Request.Race,
		Level:            abilities.Request.Level,
		Abilities:        abilities.Abilities,
		Modifiers:        abilities.Modifiers,
		ProficiencyBonus: skills.ProficiencyBonus,
		HitPoints:        abilities.HitPoints,
		Skills:           skills.Skills,
		SkillNotes:       skills.Notes,
	}

	raw, err := json.Marshal(sheet)
	if err != nil {
		return nil, fmt.Errorf("encode sheet: %w", err)
	}
	if err := b.saver.SaveSheet(ctx, s.Job.ObjectID, s.Job.ID, raw); err != nil {
		return nil, fmt.Errorf("save sheet: %w", err)
	}
	return sheet, nil
}
