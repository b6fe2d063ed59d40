package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieforeagent/internal/approval"
	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/infrastructure"
	"sieforeagent/internal/ledger"
	"sieforeagent/internal/verification"
	"sieforeagent/pkg/contracts/domain"
)

var (
	sep24 = domain.Period{Year: "2024", Month: "09"}
	oct24 = domain.Period{Year: "2024", Month: "10"}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storeRecords(p domain.Period, converted float64) []domain.Record {
	var out []domain.Record
	for _, e := range []string{"Azteca", "SURA"} {
		for _, c := range []string{domain.ConceptTotalAssets, domain.ConceptMutualFunds} {
			out = append(out, domain.Record{
				Entity:         e,
				Subfund:        "60-64",
				Concept:        c,
				PeriodYear:     p.Year,
				PeriodMonth:    p.Month,
				ValueNative:    converted * 20,
				ConversionRate: 20,
				ValueConverted: converted,
				UnitScale:      domain.UnitScaleThousands,
				Confidence:     domain.ConfidenceFull,
			})
		}
	}
	return out
}

type apiFixture struct {
	server    *httptest.Server
	storePath string
	telemetry *infrastructure.Telemetry
}

func newAPIFixture(t *testing.T, approvals ApprovalReader) *apiFixture {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "consar_siefores_with_usd.json")
	records := append(storeRecords(sep24, 5), storeRecords(oct24, 5.2)...)
	require.NoError(t, ledger.WriteRecords(storePath, records))

	tel, err := infrastructure.InitializeTelemetry(config.TelemetryConfig{
		ServiceName:    "siefore-test",
		MetricsEnabled: true,
	}, nil, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { tel.Shutdown(context.Background()) })

	router := NewRouter(RouterDeps{
		Store:     ledger.NewStore(storePath, filepath.Join(dir, "backups"), quietLogger()),
		Verifier:  verification.NewVerifier(0, quietLogger()),
		Approvals: approvals,
		Telemetry: tel,
		Logger:    quietLogger(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, storePath: storePath, telemetry: tel}
}

func (f *apiFixture) get(t *testing.T, path string, into interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t, nil)

	var body map[string]interface{}
	resp := f.get(t, "/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["periods"])
	assert.Equal(t, "2024-10", body["latest_period"])

	require.NoError(t, os.WriteFile(f.storePath, []byte("{not json"), 0644))
	body = nil
	resp = f.get(t, "/healthz", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

func TestListPeriods(t *testing.T) {
	f := newAPIFixture(t, nil)

	var body struct {
		Periods []string `json:"periods"`
		Count   int      `json:"count"`
		Latest  string   `json:"latest"`
	}
	resp := f.get(t, "/api/v1/periods", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"2024-09", "2024-10"}, body.Periods)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "2024-10", body.Latest)
}

func TestGetRecords(t *testing.T) {
	f := newAPIFixture(t, nil)

	var body struct {
		Period  string          `json:"period"`
		Count   int             `json:"count"`
		Records []domain.Record `json:"records"`
	}
	resp := f.get(t, "/api/v1/periods/2024-10/records", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-10", body.Period)
	assert.Equal(t, 4, body.Count)

	body.Records = nil
	f.get(t, "/api/v1/periods/2024-10/records?entity=azteca&concept=Total%20de%20Activo", &body)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "Azteca", body.Records[0].Entity)
	assert.Equal(t, 5.2, body.Records[0].ValueConverted)
}

func TestGetSummary(t *testing.T) {
	f := newAPIFixture(t, nil)

	var summary domain.ReviewSummary
	resp := f.get(t, "/api/v1/periods/2024-09/summary", &summary)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, []string{"Azteca", "SURA"}, summary.Entities)
	assert.InDelta(t, 20.0, summary.TotalConverted, 1e-9)
}

func TestGetVerification(t *testing.T) {
	f := newAPIFixture(t, nil)

	var report domain.ConsistencyReport
	resp := f.get(t, "/api/v1/periods/2024-10/verification", &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sep24, report.PriorPeriod)
	assert.Equal(t, domain.CheckStatusPass, report.Status)
	require.Len(t, report.Breakdown, 2)

	var problem map[string]interface{}
	resp = f.get(t, "/api/v1/periods/2024-09/verification", &problem)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, TypeVerification, problem["type"])
	assert.Equal(t, string(apperrors.ErrTypeVerification), problem["kind"])
}

func TestProblemResponses(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		path   string
		status int
		typ    string
	}{
		{"/api/v1/periods/2024-13/records", http.StatusBadRequest, TypeValidation},
		{"/api/v1/periods/october/summary", http.StatusBadRequest, TypeValidation},
		{"/api/v1/periods/2023-01/records", http.StatusNotFound, TypeNotFound},
		{"/api/v1/approval", http.StatusNotFound, TypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var problem map[string]interface{}
			resp := f.get(t, tt.path, &problem)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.typ, problem["type"])
			assert.Equal(t, float64(tt.status), problem["status"])
			assert.Equal(t, tt.path, problem["instance"])
			assert.NotEmpty(t, problem["request_id"])
		})
	}
}

func TestGetApproval(t *testing.T) {
	dir := t.TempDir()
	m := approval.NewManager(filepath.Join(dir, "approval_status.json"), filepath.Join(dir, "review.json"), quietLogger())
	f := newAPIFixture(t, m)

	resp := f.get(t, "/api/v1/approval", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	enriched := filepath.Join(dir, "consar_latest_enriched.json")
	require.NoError(t, ledger.WriteRecords(enriched, storeRecords(oct24, 6)))
	_, _, err := m.Submit(context.Background(), storeRecords(oct24, 6), enriched)
	require.NoError(t, err)

	var a domain.Approval
	resp = f.get(t, "/api/v1/approval", &a)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.ApprovalStatusPending, a.Status)
}

func TestRequestMetrics(t *testing.T) {
	f := newAPIFixture(t, nil)

	f.get(t, "/api/v1/periods/2024-10/records", nil)
	f.get(t, "/api/v1/periods/2023-01/records", nil)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "siefore_http_requests_total")
	assert.Contains(t, text, `route="/api/v1/periods/{period}/records"`)
	assert.Contains(t, text, `status_code="404"`)
	assert.Contains(t, text, "siefore_http_request_duration_seconds")
	assert.NotContains(t, text, `route="/api/v1/periods/2024-10/records"`)
}

func TestErrorToProblem(t *testing.T) {
	h := NewErrorHandler(quietLogger())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/periods", nil)

	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"plain", apperrors.New("boom"), http.StatusInternalServerError, TypeInternal},
		{"validation", apperrors.NewAppValidationError("bad", nil), http.StatusBadRequest, TypeValidation},
		{"not found", apperrors.NewNotFoundError("period"), http.StatusNotFound, TypeNotFound},
		{"precondition", apperrors.NewPreconditionError("not approved", apperrors.ErrApprovalNotApproved), http.StatusConflict, TypeConflict},
		{"storage", apperrors.NewStorageError("unreadable", nil), http.StatusInternalServerError, TypeDataCorrupt},
		{"network", apperrors.NewNetworkError("down", nil), http.StatusInternalServerError, TypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "/api/v1/periods", p.Instance)
		})
	}
}
