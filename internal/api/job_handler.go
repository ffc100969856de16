package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/api/shared"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/service"
)

// JobService is the part of the dispatcher the HTTP layer needs.
type JobService interface {
	Dispatch(ctx context.Context, spec service.JobSpec) (service.DispatchResult, error)
	Status(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error)
}

// EventCatalog lists the dispatchable event names.
type EventCatalog interface {
	EventNames() []string
}

// JobHandler handles generation job endpoints.
type JobHandler struct {
	jobs    JobService
	catalog EventCatalog
	logger  *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs JobService, catalog EventCatalog, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobs:    jobs,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "job_handler")),
	}
}

// CreateJob handles POST /api/jobs. It responds 202 with the job the caller
// should poll, which is an existing in-flight job when one matches the
// request's dedup key.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateJobRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	result, err := h.jobs.Dispatch(r.Context(), req.JobSpec())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if subject, ok := shared.GetClientSubject(r.Context()); ok {
		log = log.With(slog.String("client", subject))
	}
	log.Debug("job accepted",
		slog.String("job_id", result.JobID.String()),
		slog.Bool("deduplicated", result.Deduplicated))

	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(result))
}

// ListEvents handles GET /api/events.
func (h *JobHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.catalog != nil {
		names = append(names, h.catalog.EventNames()...)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, EventsResponse{Events: names})
}
