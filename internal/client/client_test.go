package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/jobs", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "character/sheet/generate", req.EventName)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(DispatchResponse{JobID: jobID, Status: domain.ResultStatusPending})
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", WithToken("tok"))
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), JobRequest{
		EventName:  "character/sheet/generate",
		ObjectType: "character",
		ObjectID:   "c-1",
		ObjectKey:  "sheet",
	})
	require.NoError(t, err)
	assert.Equal(t, jobID, resp.JobID)
	assert.False(t, resp.Deduplicated)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/"+jobID.String(), r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"` + jobID.String() + `","event_name":"e","status":"pending",` +
			`"step":"calc-skills","step_index":2,"message":"Calculating skills","result":{"a":1},` +
			`"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:01Z"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	job, err := c.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, domain.ResultStatusPending, job.Status)
	assert.Equal(t, "calc-skills", job.Step)
	assert.Equal(t, 2, job.StepIndex)
	assert.JSONEq(t, `{"a":1}`, string(job.Result))
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		sentinel  error
		temporary bool
	}{
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusUnauthorized, ErrUnauthorized, false},
		{http.StatusBadRequest, ErrBadRequest, false},
		{http.StatusServiceUnavailable, nil, true},
		{http.StatusTooManyRequests, nil, true},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope","trace_id":"t-1"}`))
			}))
			t.Cleanup(srv.Close)

			c, err := New(srv.URL)
			require.NoError(t, err)

			_, err = c.GetJob(context.Background(), uuid.New())
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "t-1", apiErr.TraceID)
			assert.Equal(t, tc.temporary, apiErr.Temporary())
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
		})
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New("localhost:8080")
	assert.Error(t, err)
	_, err = New("")
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		_, _ = w.Write([]byte(`{"events":["a/b","c/d"]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	names, err := c.Events(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b", "c/d"}, names)
}
