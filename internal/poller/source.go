package poller

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/client"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/store"
)

// Source reads the current record of a job.
//
// Errors wrapping ErrJobNotFound, ErrUnauthorized or ErrRejected end polling;
// any other error is treated as transient.
type Source interface {
	Fetch(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error)
}

// ResultReader is the part of store.ResultStore a StoreSource needs.
type ResultReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error)
}

// StoreSource reads jobs straight from the result store, for callers in the
// same process as the store.
type StoreSource struct {
	results ResultReader
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(results ResultReader) *StoreSource {
	return &StoreSource{results: results}
}

// Fetch implements Source.
func (s *StoreSource) Fetch(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	result, err := s.results.GetByID(ctx, jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, err
	}
	return result, nil
}

// HTTPSource reads jobs through the status endpoint of the jobs API.
type HTTPSource struct {
	client *client.Client
}

// NewHTTPSource creates an HTTPSource.
func NewHTTPSource(c *client.Client) *HTTPSource {
	return &HTTPSource{client: c}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	result, err := s.client.GetJob(ctx, jobID)
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, client.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", ErrJobNotFound, err)
	case errors.Is(err, client.ErrUnauthorized):
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return nil, err
}
