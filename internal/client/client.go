package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
)

// Errors reported for non-2xx responses.
var (
	ErrNotFound     = errors.New("job not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// APIError is a non-2xx response from the jobs API.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("api error %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// JobRequest is the body of a dispatch call.
type JobRequest struct {
	EventName  string          `json:"event_name"`
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id"`
	ObjectKey  string          `json:"object_key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// DispatchResponse identifies the job that performs a dispatched request.
type DispatchResponse struct {
	JobID        uuid.UUID           `json:"job_id"`
	Status       domain.ResultStatus `json:"status"`
	Deduplicated bool                `json:"deduplicated"`
}

// Client talks to the jobs API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the API at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dispatch submits a job.
func (c *Client) Dispatch(ctx context.Context, req JobRequest) (DispatchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return DispatchResponse{}, fmt.Errorf("encode request: %w", err)
	}

	var out DispatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", body, &out); err != nil {
		return DispatchResponse{}, err
	}
	return out, nil
}

// GetJob fetches the current record of a job.
func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error) {
	var out jobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return out.toDomain()
}

// Events lists the event names the server can run.
func (c *Client) Events(ctx context.Context) ([]string, error) {
	var out struct {
		Events []string `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

type jobResponse struct {
	ID         uuid.UUID           `json:"id"`
	EventName  string              `json:"event_name"`
	ObjectType string              `json:"object_type"`
	ObjectID   string              `json:"object_id"`
	ObjectKey  string              `json:"object_key"`
	Status     domain.ResultStatus `json:"status"`
	Step       string              `json:"step"`
	StepIndex  int                 `json:"step_index"`
	Message    string              `json:"message"`
	Result     json.RawMessage     `json:"result"`
	Error      string              `json:"error"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (r jobResponse) toDomain() (*domain.GenerationResult, error) {
	if !r.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidResultStatus, r.Status)
	}
	return &domain.GenerationResult{
		ID:         r.ID,
		EventName:  r.EventName,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		ObjectKey:  r.ObjectKey,
		Status:     r.Status,
		Step:       r.Step,
		StepIndex:  r.StepIndex,
		Message:    r.Message,
		Result:     r.Result,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error   string `json:"error"`
			TraceID string `json:"trace_id"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.TraceID = e.TraceID
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
