package infrastructure

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieforeagent/internal/config"
)

func testTelemetryConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		ServiceName:    "siefore-test",
		MetricsEnabled: true,
		Environment:    "test",
	}
}

func TestTelemetryWriteTextfile(t *testing.T) {
	tel, err := InitializeTelemetry(testTelemetryConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := context.Background()
	tel.Metrics.RecordsExtracted.Add(ctx, 42, Attr("subfund", "60-64"))
	tel.Metrics.ConversionRate.Record(ctx, 18.5)

	path := filepath.Join(t.TempDir(), "siefore.prom")
	require.NoError(t, tel.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "siefore_records_extracted")
	assert.Contains(t, text, `subfund="60-64"`)
	assert.Contains(t, text, "siefore_conversion_rate")
}

func TestTelemetryHandler(t *testing.T) {
	tel, err := InitializeTelemetry(testTelemetryConfig(), nil, nil)
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	tel.Metrics.HTTPRequests.Add(context.Background(), 1, Attr("route", "/healthz"))

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "siefore_http_requests")
}

func TestTelemetryTracingToWriter(t *testing.T) {
	var spans bytes.Buffer
	cfg := testTelemetryConfig()
	cfg.TracingEnabled = true

	tel, err := InitializeTelemetry(cfg, &spans, nil)
	require.NoError(t, err)

	_, span := tel.Tracer.Start(context.Background(), "extract")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Contains(t, spans.String(), `"Name":"extract"`)
}

func TestTelemetryDisabled(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{ServiceName: "off"}, nil, nil)
	require.NoError(t, err)

	// instruments are usable and record nothing
	tel.Metrics.StageRuns.Add(context.Background(), 1)
	assert.Nil(t, tel.MeterProvider)
	assert.Nil(t, tel.TracerProvider)
	assert.NoError(t, tel.WriteTextfile(""))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	require.NotNil(t, m)
	m.RetryAttempts.Add(context.Background(), 3)
}
