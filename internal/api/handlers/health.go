package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/api/middleware"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	log   zerolog.Logger
}

func NewHealthHandler(store Pinger, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

// Check handles GET /health. It always answers 200; store reachability is
// reported in database_available.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	available := true
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Store ping failed")
		available = false
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"database_available": available,
	})
}
