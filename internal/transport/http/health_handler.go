package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"sieforeagent/internal/infrastructure"
)

// HealthHandler reports whether the store can be read.
type HealthHandler struct {
	store  LedgerReader
	now    func() time.Time
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store LedgerReader, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"version":   infrastructure.ServiceVersion,
		"timestamp": h.now().UTC(),
	}

	periods, err := h.store.Periods(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "store unreadable", slog.String("error", err.Error()))
		resp["status"] = "degraded"
		resp["error"] = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, resp)
		return
	}
	resp["periods"] = len(periods)
	if len(periods) > 0 {
		resp["latest_period"] = periods[len(periods)-1].String()
	}
	render.JSON(w, r, resp)
}
