package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/api/middleware"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// Fixed explanations of how each issue category was handled.
var resolutions = map[string]string{
	"invalid_dates":          "Excluded from analysis",
	"missing_timezones":      "Assumed UTC based on server logs",
	"duplicate_transactions": "Kept latest timestamp version",
	"out_of_order_records":   "Reordered by actual transaction time",
}

type issuesFound struct {
	InvalidDates          int `json:"invalid_dates"`
	MissingTimezones      int `json:"missing_timezones"`
	DuplicateTransactions int `json:"duplicate_transactions"`
	OutOfOrderRecords     int `json:"out_of_order_records"`
}

// QualityReport is the body of GET /api/data-quality.
type QualityReport struct {
	TotalRecords      int               `json:"total_records"`
	ProcessedRecords  int               `json:"processed_records"`
	IssuesFound       issuesFound       `json:"issues_found"`
	ResolutionSummary map[string]string `json:"resolution_summary"`
}

// QualityHandler serves the data quality report.
type QualityHandler struct {
	repo repository.QualityReader
	log  zerolog.Logger
}

func NewQualityHandler(repo repository.QualityReader, log zerolog.Logger) *QualityHandler {
	return &QualityHandler{repo: repo, log: log}
}

// GetReport handles GET /api/data-quality
func (h *QualityHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.LatestQualitySummary(r.Context())
	if errors.Is(err, repository.ErrNoQualitySummary) {
		middleware.WriteAPIError(w, http.StatusNotFound, "No data quality summary found", "Please ensure data has been processed")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read quality summary")
		middleware.WriteInternalError(w)
		return
	}

	stats := summary.Stats
	report := QualityReport{
		TotalRecords:     stats.TotalSeen,
		ProcessedRecords: summary.ProcessedRecords,
		IssuesFound: issuesFound{
			InvalidDates:          stats.InvalidDates,
			MissingTimezones:      stats.MissingTimezones,
			DuplicateTransactions: stats.Duplicates,
			OutOfOrderRecords:     stats.OutOfOrder,
		},
		ResolutionSummary: map[string]string{},
	}

	for key, count := range map[string]int{
		"invalid_dates":          stats.InvalidDates,
		"missing_timezones":      stats.MissingTimezones,
		"duplicate_transactions": stats.Duplicates,
		"out_of_order_records":   stats.OutOfOrder,
	} {
		if count != 0 {
			report.ResolutionSummary[key] = resolutions[key]
		}
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
