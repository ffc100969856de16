package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/service"
)

// CreateJobRequest defines the payload for the job dispatch endpoint.
type CreateJobRequest struct {
	EventName  string          `json:"event_name"`
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id"`
	ObjectKey  string          `json:"object_key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// JobSpec converts the request into a dispatcher job spec.
func (r CreateJobRequest) JobSpec() service.JobSpec {
	return service.JobSpec{
		EventName:  r.EventName,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		ObjectKey:  r.ObjectKey,
		Payload:    r.Payload,
	}
}

// JobResponse is the pollable view of a generation job.
type JobResponse struct {
	ID         uuid.UUID           `json:"id"`
	EventName  string              `json:"event_name"`
	ObjectType string              `json:"object_type"`
	ObjectID   string              `json:"object_id"`
	ObjectKey  string              `json:"object_key"`
	Status     domain.ResultStatus `json:"status"`
	Step       string              `json:"step,omitempty"`
	StepIndex  int                 `json:"step_index"`
	Message    string              `json:"message,omitempty"`
	Result     json.RawMessage     `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
}

// EventsResponse lists the event names that can be dispatched.
type EventsResponse struct {
	Events []string `json:"events"`
}

func jobToResponse(r *domain.GenerationResult) JobResponse {
	return JobResponse{
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
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
