package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, TraceIDLength*2)
	assert.True(t, ValidTraceID(id))

	other := GetTraceID(SetTraceID(context.Background()))
	assert.NotEqual(t, id, other)
}

func TestValidTraceID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidTraceID("0b7d0f2e-4d1c-4b8a-9f3e-2c6d8a1b5e7f"))
	assert.False(t, ValidTraceID("short"))
	assert.False(t, ValidTraceID("has spaces in it"))
	assert.False(t, ValidTraceID("newline\ninjected-value"))
}

func TestClientSubject(t *testing.T) {
	t.Parallel()

	_, ok := GetClientSubject(context.Background())
	assert.False(t, ok)

	subject, ok := GetClientSubject(WithClientSubject(context.Background(), "character-service"))
	assert.True(t, ok)
	assert.Equal(t, "character-service", subject)
}
