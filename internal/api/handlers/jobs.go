package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/api/middleware"
	"github.com/dvloznov/commerce-analytics/internal/jobs"
)

// IngestHandler enqueues ingestion runs.
type IngestHandler struct {
	publisher     jobs.Publisher
	defaultSource string
	maxRetries    int
	log           zerolog.Logger
}

// NewIngestHandler creates an ingest handler. Requests without a source_uri
// ingest defaultSource.
func NewIngestHandler(publisher jobs.Publisher, defaultSource string, maxRetries int, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		publisher:     publisher,
		defaultSource: defaultSource,
		maxRetries:    maxRetries,
		log:           log,
	}
}

// Enqueue handles POST /api/ingest
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURI string `json:"source_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteAPIError(w, http.StatusBadRequest, titleInvalidBody, "Body must be a JSON object with an optional source_uri")
		return
	}

	if req.SourceURI == "" {
		req.SourceURI = h.defaultSource
	}
	if req.SourceURI == "" {
		middleware.WriteAPIError(w, http.StatusBadRequest, titleMissingParams, "source_uri is required")
		return
	}

	job := &jobs.IngestJob{
		SourceURI:  req.SourceURI,
		MaxRetries: h.maxRetries,
	}

	if err := h.publisher.PublishIngest(r.Context(), job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteAPIError(w, http.StatusServiceUnavailable, "Service unavailable", "Ingestion queue is shutting down")
			return
		}
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteInternalError(w)
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_uri", job.SourceURI).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_uri": job.SourceURI,
		"status":     string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteAPIError(w, http.StatusNotFound, "Job not found", "No job with id "+jobID)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteInternalError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status"))}

	if filter.Status != "" && !filter.Status.Valid() {
		middleware.WriteAPIError(w, http.StatusBadRequest, titleInvalidParams, "Unknown job status "+string(filter.Status))
		return
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.WriteAPIError(w, http.StatusBadRequest, titleInvalidParams, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteInternalError(w)
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.IngestJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
