package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/genjobs/internal/domain"
)

// Pipeline definition errors
var (
	ErrEmptyPipeline     = errors.New("pipeline must have at least one step")
	ErrInvalidStep       = errors.New("invalid pipeline step")
	ErrDuplicateStepName = errors.New("duplicate step name in pipeline")
)

// StepFunc performs the work of one step. The returned value is marshalled
// to JSON, checkpointed, and reported as the job's partial result.
type StepFunc func(ctx context.Context, state *State) (any, error)

// Step is one checkpointed unit of work.
type Step struct {
	// Name identifies the step within its pipeline and keys its checkpoint.
	Name string

	// Message is the progress text written once the step has finished.
	Message string

	// Timeout bounds a single run of the step. Zero means no limit.
	Timeout time.Duration

	Run StepFunc
}

// State gives a running step access to its job and to the outputs of the
// steps before it.
type State struct {
	Job     *domain.GenerationResult
	outputs map[string]json.RawMessage
}

func newState(job *domain.GenerationResult) *State {
	return &State{Job: job, outputs: make(map[string]json.RawMessage)}
}

// Output returns the raw output of an earlier step.
func (s *State) Output(step string) (json.RawMessage, bool) {
	out, ok := s.outputs[step]
	return out, ok
}

// Decode unmarshals the output of an earlier step into T.
func Decode[T any](s *State, step string) (T, error) {
	var out T
	raw, ok := s.outputs[step]
	if !ok {
		return out, fmt.Errorf("no output recorded for step %q", step)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode output of step %q: %w", step, err)
	}
	return out, nil
}

// DecodePayload unmarshals the job's submission payload into T.
func DecodePayload[T any](s *State) (T, error) {
	var out T
	if len(s.Job.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(s.Job.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: payload: %v", domain.ErrInvalidFormat, err)
	}
	return out, nil
}

// Pipeline is the ordered list of steps run for one event name.
type Pipeline struct {
	EventName string
	Steps     []Step

	// FinalMessage is written when the job completes.
	FinalMessage string

	finalize func(ctx context.Context, state *State) (json.RawMessage, error)
}

// NewPipeline builds a pipeline whose final result has type T. finalize
// assembles the result from the step outputs; when nil, the output of the
// last step is decoded as T.
func NewPipeline[T any](
	eventName string,
	finalMessage string,
	steps []Step,
	finalize func(ctx context.Context, state *State) (T, error),
) (*Pipeline, error) {
	if eventName == "" {
		return nil, domain.ErrEmptyEventName
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPipeline
	}

	seen := make(map[string]struct{}, len(steps))
	for i, step := range steps {
		if step.Name == "" || step.Run == nil {
			return nil, fmt.Errorf("%w: step %d needs a name and a run function", ErrInvalidStep, i+1)
		}
		if _, dup := seen[step.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStepName, step.Name)
		}
		seen[step.Name] = struct{}{}
	}

	if finalize == nil {
		last := steps[len(steps)-1].Name
		finalize = func(_ context.Context, state *State) (T, error) {
			return Decode[T](state, last)
		}
	}

	return &Pipeline{
		EventName:    eventName,
		Steps:        append([]Step(nil), steps...),
		FinalMessage: finalMessage,
		finalize: func(ctx context.Context, state *State) (json.RawMessage, error) {
			result, err := finalize(ctx, state)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		},
	}, nil
}

// MustPipeline is like NewPipeline but panics on an invalid definition.
// It is meant for package-level pipeline declarations.
func MustPipeline[T any](
	eventName string,
	finalMessage string,
	steps []Step,
	finalize func(ctx context.Context, state *State) (T, error),
) *Pipeline {
	p, err := NewPipeline(eventName, finalMessage, steps, finalize)
	if err != nil {
		// ALLOW-PANIC: invalid static pipeline definition
		panic(err)
	}
	return p
}

// StepIndex returns the 1-based position of the named step, or 0.
func (p *Pipeline) StepIndex(name string) int {
	for i, step := range p.Steps {
		if step.Name == name {
			return i + 1
		}
	}
	return 0
}

func encodeOutput(v any) (json.RawMessage, error) {
	switch out := v.(type) {
	case json.RawMessage:
		if len(out) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(out) {
			return nil, fmt.Errorf("%w: step returned invalid JSON", domain.ErrInvalidFormat)
		}
		return out, nil
	default:
		return json.Marshal(v)
	}
}
