package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sieforeagent/internal/approval"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// LedgerReader is the read side of the historical store.
type LedgerReader interface {
	Load(ctx context.Context) ([]domain.Record, error)
	Periods(ctx context.Context) ([]domain.Period, error)
	RecordsFor(ctx context.Context, period domain.Period) ([]domain.Record, error)
}

// ReportVerifier compares a period against the one before it.
type ReportVerifier interface {
	Verify(records []domain.Record, target domain.Period) (*domain.ConsistencyReport, error)
}

// ApprovalReader returns the current approval document.
type ApprovalReader interface {
	Load() (*domain.Approval, error)
}

type periodKey struct{}

// LedgerHandler serves the historical store read-only.
type LedgerHandler struct {
	store        LedgerReader
	verifier     ReportVerifier
	approvals    ApprovalReader
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewLedgerHandler creates a handler. approvals may be nil.
func NewLedgerHandler(store LedgerReader, verifier ReportVerifier, approvals ApprovalReader, errorHandler *ErrorHandler, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		store:        store,
		verifier:     verifier,
		approvals:    approvals,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "ledger")),
	}
}

// Routes returns the ledger routes
func (h *LedgerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/periods", h.ListPeriods)
	r.Route("/periods/{period}", func(r chi.Router) {
		r.Use(h.periodCtx)
		r.Get("/records", h.GetRecords)
		r.Get("/summary", h.GetSummary)
		r.Get("/verification", h.GetVerification)
	})
	r.Get("/approval", h.GetApproval)
	return r
}

// periodCtx resolves the {period} path parameter.
func (h *LedgerHandler) periodCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := domain.ParsePeriod(chi.URLParam(r, "period"))
		if err != nil {
			h.errorHandler.HandleError(w, r, apperrors.NewAppValidationError("invalid period", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), periodKey{}, p)))
	})
}

func periodFrom(ctx context.Context) domain.Period {
	p, _ := ctx.Value(periodKey{}).(domain.Period)
	return p
}

// ListPeriods handles GET /periods
func (h *LedgerHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.store.Periods(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	labels := make([]string, len(periods))
	for i, p := range periods {
		labels[i] = p.String()
	}
	resp := map[string]interface{}{
		"periods": labels,
		"count":   len(labels),
	}
	if len(labels) > 0 {
		resp["latest"] = labels[len(labels)-1]
	}
	render.JSON(w, r, resp)
}

// GetRecords handles GET /periods/{period}/records. The optional entity,
// subfund and concept query parameters filter case-insensitively.
func (h *LedgerHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.periodRecords(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	q := r.URL.Query()
	filtered := records[:0:0]
	for _, rec := range records {
		if matches(q.Get("entity"), rec.Entity) &&
			matches(q.Get("subfund"), rec.Subfund) &&
			matches(q.Get("concept"), rec.Concept) {
			filtered = append(filtered, rec)
		}
	}
	render.JSON(w, r, map[string]interface{}{
		"period":  periodFrom(r.Context()).String(),
		"count":   len(filtered),
		"records": filtered,
	})
}

// GetSummary handles GET /periods/{period}/summary
func (h *LedgerHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	records, err := h.periodRecords(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, approval.Summarize(records))
}

// GetVerification handles GET /periods/{period}/verification. The report
// is computed on demand and never persisted.
func (h *LedgerHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Load(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	report, err := h.verifier.Verify(records, periodFrom(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// GetApproval handles GET /approval
func (h *LedgerHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	if h.approvals == nil {
		h.errorHandler.HandleError(w, r, apperrors.NewNotFoundError("approval document"))
		return
	}
	a, err := h.approvals.Load()
	if apperrors.Is(err, apperrors.ErrApprovalMissing) {
		err = apperrors.NewNotFoundError("approval document")
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, a)
}

func (h *LedgerHandler) periodRecords(r *http.Request) ([]domain.Record, error) {
	p := periodFrom(r.Context())
	records, err := h.store.RecordsFor(r.Context(), p)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError("period " + p.String())
	}
	return records, nil
}

func matches(filter, value string) bool {
	return filter == "" || strings.EqualFold(strings.TrimSpace(filter), value)
}
