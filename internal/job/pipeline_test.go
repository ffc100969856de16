package job

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, state *State) (any, error) { return nil, nil }

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		eventName string
		steps     []Step
		wantErr   error
	}{
		{"empty event name", "", []Step{{Name: "a", Run: noop}}, domain.ErrEmptyEventName},
		{"no steps", "x/y", nil, ErrEmptyPipeline},
		{"unnamed step", "x/y", []Step{{Run: noop}}, ErrInvalidStep},
		{"step without func", "x/y", []Step{{Name: "a"}}, ErrInvalidStep},
		{"duplicate names", "x/y", []Step{{Name: "a", Run: noop}, {Name: "a", Run: noop}}, ErrDuplicateStepName},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPipeline[any](tc.eventName, "done", tc.steps, nil)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPipeline_DefaultFinalizeUsesLastStep(t *testing.T) {
	t.Parallel()

	type out struct {
		Total int `json:"total"`
	}

	p, err := NewPipeline[out]("sum/generate", "Summed", []Step{
		{Name: "first", Run: func(ctx context.Context, s *State) (any, error) { return 1, nil }},
		{Name: "second", Run: func(ctx context.Context, s *State) (any, error) {
			first, err := Decode[int](s, "first")
			if err != nil {
				return nil, err
			}
			return out{Total: first + 1}, nil
		}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.StepIndex("second"))
	assert.Equal(t, 0, p.StepIndex("missing"))

	state := newState(&domain.GenerationResult{})
	for _, step := range p.Steps {
		v, err := step.Run(context.Background(), state)
		require.NoError(t, err)
		raw, err := encodeOutput(v)
		require.NoError(t, err)
		state.outputs[step.Name] = raw
	}

	result, err := p.finalize(context.Background(), state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(result))
}

func TestDecodeHelpers(t *testing.T) {
	t.Parallel()

	state := newState(&domain.GenerationResult{Payload: json.RawMessage(`{"name":"Ada"}`)})

	payload, err := DecodePayload[struct{ Name string }](state)
	require.NoError(t, err)
	assert.Equal(t, "Ada", payload.Name)

	_, err = Decode[int](state, "missing")
	assert.Error(t, err)

	state.Job.Payload = json.RawMessage(`not json`)
	_, err = DecodePayload[struct{ Name string }](state)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestEncodeOutput(t *testing.T) {
	t.Parallel()

	raw, err := encodeOutput(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = encodeOutput(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	_, err = encodeOutput(json.RawMessage(`{`))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	a := MustPipeline[any]("a/generate", "", []Step{{Name: "s", Run: noop}}, nil)
	b := MustPipeline[any]("b/generate", "", []Step{{Name: "s", Run: noop}}, nil)

	reg, err := NewRegistry(b, a)
	require.NoError(t, err)

	assert.True(t, reg.Has("a/generate"))
	assert.False(t, reg.Has("c/generate"))
	assert.Equal(t, []string{"a/generate", "b/generate"}, reg.EventNames())

	got, ok := reg.Lookup("b/generate")
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.ErrorIs(t, reg.Register(a), ErrPipelineExists)
	assert.Error(t, reg.Register(nil))

	assert.Panics(t, func() { MustPipeline[any]("", "", nil, nil) })
}
