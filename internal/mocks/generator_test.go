package mocks_test

import (
	"context"
	"testing"

	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerator(t *testing.T) {
	t.Parallel()

	t.Run("returns canned text and records requests", func(t *testing.T) {
		t.Parallel()

		gen := mocks.NewMockGeneratorWithText("A quiet ranger.")
		out, err := gen.Generate(context.Background(), generation.Request{Purpose: "backstory", Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "A quiet ranger.", out)
		assert.Equal(t, 1, gen.Calls())
		assert.Equal(t, "backstory", gen.Requests()[0].Purpose)
	})

	t.Run("returns canned error", func(t *testing.T) {
		t.Parallel()

		gen := mocks.NewMockGeneratorWithError(generation.ErrContentBlocked)
		_, err := gen.Generate(context.Background(), generation.Request{Prompt: "p"})
		assert.ErrorIs(t, err, generation.ErrContentBlocked)
	})

	t.Run("GenerateFn overrides", func(t *testing.T) {
		t.Parallel()

		gen := &mocks.MockGenerator{
			GenerateFn: func(_ context.Context, req generation.Request) (string, error) {
				return "echo: " + req.Prompt, nil
			},
		}
		out, err := gen.Generate(context.Background(), generation.Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "echo: hi", out)
	})
}
