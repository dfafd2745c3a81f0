// Package api assembles the HTTP surface of the analytics service.
package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/api/handlers"
	"github.com/dvloznov/commerce-analytics/internal/api/middleware"
	"github.com/dvloznov/commerce-analytics/internal/jobs"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Engine          handlers.ReportEngine
	Quality         repository.QualityReader
	Store           handlers.Pinger
	Publisher       jobs.Publisher
	JobStore        jobs.JobStore
	DefaultTimezone string
	DefaultSource   string
	MaxRetries      int
	Log             zerolog.Logger
}

// methods routes by request method and answers 405 for anything else.
func methods(routes map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method]; ok {
			h(w, r)
			return
		}
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return methods(map[string]http.HandlerFunc{http.MethodGet: h})
}

// NewRouter registers every endpoint and wraps the mux in the middleware chain.
func NewRouter(d Deps) http.Handler {
	reportsHandler := handlers.NewReportsHandler(d.Engine, d.DefaultTimezone, d.Log)
	qualityHandler := handlers.NewQualityHandler(d.Quality, d.Log)
	healthHandler := handlers.NewHealthHandler(d.Store, d.Log)
	ingestHandler := handlers.NewIngestHandler(d.Publisher, d.DefaultSource, d.MaxRetries, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.JobStore, d.Log)

	mux := http.NewServeMux()

	// Sales reports
	mux.HandleFunc("/api/sales/daily", get(reportsHandler.Daily))
	mux.HandleFunc("/api/sales/hourly", get(reportsHandler.Hourly))
	mux.HandleFunc("/api/sales/compare", get(reportsHandler.Compare))

	mux.HandleFunc("/api/data-quality", get(qualityHandler.GetReport))

	// Ingestion and jobs
	mux.HandleFunc("/api/ingest", methods(map[string]http.HandlerFunc{http.MethodPost: ingestHandler.Enqueue}))
	mux.HandleFunc("/api/jobs", get(jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", get(func(w http.ResponseWriter, r *http.Request) {
		// Extract job ID from path
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" || strings.Contains(jobID, "/") {
			middleware.WriteAPIError(w, http.StatusBadRequest, "Missing parameters", "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", get(healthHandler.Check))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Page not found")
	})

	return middleware.RequestID(
		middleware.Recovery(d.Log)(
			middleware.Logger(d.Log)(
				middleware.CORS(
					middleware.Metrics(mux),
				),
			),
		),
	)
}
