package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sieforeagent/internal/infrastructure"
)

// RouterDeps holds everything the ledger API serves.
type RouterDeps struct {
	Store     LedgerReader
	Verifier  ReportVerifier
	Approvals ApprovalReader
	Telemetry *infrastructure.Telemetry
	Logger    *slog.Logger
	Timeout   time.Duration
}

// NewRouter builds the ledger API:
//
//	GET /healthz
//	GET /metrics
//	GET /api/v1/periods
//	GET /api/v1/periods/{period}/records
//	GET /api/v1/periods/{period}/summary
//	GET /api/v1/periods/{period}/verification
//	GET /api/v1/approval
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var inst *Instrumentation
	if deps.Telemetry != nil {
		inst = NewInstrumentation(deps.Telemetry.Tracer, deps.Telemetry.Metrics, logger)
	} else {
		inst = NewInstrumentation(nil, nil, logger)
	}

	errorHandler := NewErrorHandler(logger)
	ledger := NewLedgerHandler(deps.Store, deps.Verifier, deps.Approvals, errorHandler, logger)
	health := NewHealthHandler(deps.Store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(inst.Handler)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", health.HealthCheck)
	if deps.Telemetry != nil {
		r.Method(http.MethodGet, "/metrics", deps.Telemetry.Handler())
	}
	r.Mount("/api/v1", ledger.Routes())
	return r
}
