package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/genjobs/internal/client"
	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/pipelines/backstory"
	"github.com/phrazzld/genjobs/internal/pipelines/charactersheet"
	"github.com/phrazzld/genjobs/internal/poller"
	"github.com/phrazzld/genjobs/internal/service/auth"
	"github.com/phrazzld/genjobs/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "an-integration-test-secret-of-32+chars"

func testConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Port: 0, LogLevel: "error", LogFormat: "text", Mode: config.ModeAll},
		Database:    config.DatabaseConfig{Driver: "sqlite3", URL: "unused", MaxOpenConns: 1},
		Events:      config.EventsConfig{Backend: config.BackendMemory},
		Checkpoints: config.CheckpointsConfig{Backend: config.BackendSQL, TTL: time.Hour},
		Runner: config.RunnerConfig{
			WorkerCount:    2,
			QueueSize:      10,
			StaleJobAge:    time.Minute,
			SweepInterval:  time.Minute,
			SweepBatchSize: 10,
		},
		LLM: config.LLMConfig{ModelName: "gemini-2.0-flash"},
	}
}

// newTestServer runs the full application in-process against SQLite and
// returns the URL of its HTTP API.
func newTestServer(t *testing.T, cfg *config.Config) (*application, string) {
	t.Helper()

	db := testdb.OpenSQLite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := newApplication(context.Background(), cfg, logger, db)
	require.NoError(t, err)
	require.NotNil(t, app.runner)
	app.runner.Start()
	t.Cleanup(app.runner.Stop)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)
	return app, srv.URL
}

func TestHealth(t *testing.T) {
	_, url := newTestServer(t, testConfig())

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}

func TestNewApplicationUsesLocalGenerator(t *testing.T) {
	app, _ := newTestServer(t, testConfig())

	_, ok := app.generator.(generation.LocalGenerator)
	assert.True(t, ok)
	assert.NotNil(t, app.sweeper)
	assert.Nil(t, app.consumer)
	assert.Equal(t, []string{backstory.EventName, charactersheet.EventName}, app.registry.EventNames())
}

func TestCharacterSheetOverHTTP(t *testing.T) {
	_, url := newTestServer(t, testConfig())

	c, err := client.New(url)
	require.NoError(t, err)

	payload, err := json.Marshal(charactersheet.Request{Name: "Aria", Class: "wizard", Race: "gnome", Level: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := client.JobRequest{
		EventName:  charactersheet.EventName,
		ObjectType: "character",
		ObjectID:   "char-http-1",
		ObjectKey:  "sheet",
		Payload:    payload,
	}
	dispatched, err := c.Dispatch(ctx, req)
	require.NoError(t, err)

	opts := poller.Options{Interval: 10 * time.Millisecond, MaxAttempts: 500}
	snap, err := poller.New[charactersheet.Sheet](poller.NewHTTPSource(c), dispatched.JobID, opts, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Aria", snap.Result.Name)
	assert.Equal(t, "char-http-1", snap.Result.CharacterID)
	assert.Equal(t, 17, snap.Result.Abilities[charactersheet.INT])
	assert.NotEmpty(t, snap.Result.SkillNotes)

	// A finished job no longer blocks the key; dispatching again starts a new job.
	again, err := c.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, dispatched.JobID, again.JobID)
	assert.False(t, again.Deduplicated)
}

func TestUnknownEventRejected(t *testing.T) {
	_, url := newTestServer(t, testConfig())

	resp, err := http.Post(url+"/api/jobs", "application/json", strings.NewReader(
		`{"event_name":"character/unknown","object_type":"character","object_id":"c","object_key":"k"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthenticationRequiredWhenSecretSet(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = testSecret
	_, url := newTestServer(t, cfg)

	resp, err := http.Get(url + "/api/events")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tokens, err := auth.NewJWTService(testSecret)
	require.NoError(t, err)
	token, err := tokens.GenerateToken(context.Background(), "jobctl", time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, url+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays public.
	health, err := http.Get(url + "/health")
	require.NoError(t, err)
	_ = health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
