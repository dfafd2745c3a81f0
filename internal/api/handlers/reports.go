package handlers

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/analytics"
	"github.com/dvloznov/commerce-analytics/internal/api/middleware"
)

// ReportEngine is the subset of analytics.Engine the report endpoints need.
type ReportEngine interface {
	Daily(ctx context.Context, start, end civil.Date, zone string) (*analytics.DailyReport, error)
	Hourly(ctx context.Context, date civil.Date, zone string) (*analytics.HourlyReport, error)
	Compare(ctx context.Context, period1, period2 string) (*analytics.Comparison, error)
}

// ReportsHandler serves the sales report endpoints.
type ReportsHandler struct {
	engine      ReportEngine
	defaultZone string
	log         zerolog.Logger
}

// NewReportsHandler creates a reports handler. defaultZone is used when a
// request carries no timezone parameter.
func NewReportsHandler(engine ReportEngine, defaultZone string, log zerolog.Logger) *ReportsHandler {
	if defaultZone == "" {
		defaultZone = "UTC"
	}
	return &ReportsHandler{engine: engine, defaultZone: defaultZone, log: log}
}

type dailyParams struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
	Timezone  string `validate:"required,iana_zone"`
}

type hourlyParams struct {
	Date     string `validate:"required,datetime=2006-01-02"`
	Timezone string `validate:"required,iana_zone"`
}

type compareParams struct {
	Period1 string `validate:"required"`
	Period2 string `validate:"required"`
}

func (h *ReportsHandler) zone(r *http.Request) string {
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		return tz
	}
	return h.defaultZone
}

// Daily handles GET /api/sales/daily
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := dailyParams{
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		Timezone:  h.zone(r),
	}
	if perr := validateParams(params); perr != nil {
		middleware.WriteAPIError(w, http.StatusBadRequest, perr.title, perr.message)
		return
	}

	start, _ := civil.ParseDate(params.StartDate)
	end, _ := civil.ParseDate(params.EndDate)

	report, err := h.engine.Daily(r.Context(), start, end, params.Timezone)
	if errors.Is(err, analytics.ErrInvalidRange) {
		msg := "date range is longer than allowed"
		if end.Before(start) {
			msg = "end_date must not be before start_date"
		}
		middleware.WriteAPIError(w, http.StatusBadRequest, titleInvalidRange, msg)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("start_date", params.StartDate).Str("end_date", params.EndDate).Msg("Failed to build daily report")
		middleware.WriteInternalError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// Hourly handles GET /api/sales/hourly
func (h *ReportsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	params := hourlyParams{
		Date:     r.URL.Query().Get("date"),
		Timezone: h.zone(r),
	}
	if perr := validateParams(params); perr != nil {
		middleware.WriteAPIError(w, http.StatusBadRequest, perr.title, perr.message)
		return
	}

	date, _ := civil.ParseDate(params.Date)

	report, err := h.engine.Hourly(r.Context(), date, params.Timezone)
	if err != nil {
		h.log.Error().Err(err).Str("date", params.Date).Msg("Failed to build hourly report")
		middleware.WriteInternalError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// Compare handles GET /api/sales/compare
func (h *ReportsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := compareParams{
		Period1: query.Get("period1"),
		Period2: query.Get("period2"),
	}
	if perr := validateParams(params); perr != nil {
		middleware.WriteAPIError(w, http.StatusBadRequest, perr.title, perr.message)
		return
	}

	cmp, err := h.engine.Compare(r.Context(), params.Period1, params.Period2)
	if errors.Is(err, analytics.ErrInvalidPeriod) {
		middleware.WriteAPIError(w, http.StatusBadRequest, titleInvalidPeriod, "period1 and period2 must be in YYYY-MM format")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("period1", params.Period1).Str("period2", params.Period2).Msg("Failed to compare periods")
		middleware.WriteInternalError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, cmp)
}
