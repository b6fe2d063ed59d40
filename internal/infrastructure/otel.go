package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"sieforeagent/internal/config"
)

// MeterName names the tracer and meter of every command.
const MeterName = "sieforeagent"

// ServiceVersion is stamped at build time with -ldflags -X.
var ServiceVersion = "dev"

// Telemetry holds the tracing and metrics providers for one process.
// Metrics are recorded through OpenTelemetry and collected into a private
// Prometheus registry, which batch commands flush to a textfile and the
// API serves over HTTP.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prom.Registry
	Metrics        *PipelineMetrics
	logger         *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics from configuration.
// Span output goes to traceOut when tracing is enabled (stdout if nil).
func InitializeTelemetry(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t := &Telemetry{
		Tracer:   tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:    noop.NewMeterProvider().Meter(MeterName),
		Registry: prom.NewRegistry(),
		logger:   logger,
	}

	if cfg.TracingEnabled {
		if traceOut == nil {
			traceOut = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.Tracer = t.TracerProvider.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
		otel.SetTracerProvider(t.TracerProvider)
	}

	if cfg.MetricsEnabled {
		exporter, err := otelprom.New(otelprom.WithRegisterer(t.Registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		t.Meter = t.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
		otel.SetMeterProvider(t.MeterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Metrics, err = NewPipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg config.TelemetryConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	), nil
}

// RegisterRuntimeCollectors adds Go runtime and process collectors to the
// registry. Only long-running processes want these.
func (t *Telemetry) RegisterRuntimeCollectors() error {
	if err := t.Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return t.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path for the node-exporter textfile
// collector. The write is atomic.
func (t *Telemetry) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prom.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}

// PipelineMetrics are the instruments recorded by pipeline stages and the
// ledger API.
type PipelineMetrics struct {
	RecordsExtracted   metric.Int64Counter
	ParseErrors        metric.Int64Counter
	UnitMismatches     metric.Int64Counter
	StageRuns          metric.Int64Counter
	StageDuration      metric.Float64Histogram
	RetryAttempts      metric.Int64Counter
	StoreRecords       metric.Int64Gauge
	RecordsAdded       metric.Int64Counter
	ConversionRate     metric.Float64Gauge
	CheckStatus        metric.Int64Gauge
	HTTPRequests       metric.Int64Counter
	HTTPRequestLatency metric.Float64Histogram
}

// NewPipelineMetrics creates application-specific metrics on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.RecordsExtracted, err = meter.Int64Counter(
		"siefore_records_extracted",
		metric.WithDescription("Records extracted from spreadsheet exports"),
	); err != nil {
		return nil, err
	}

	if m.ParseErrors, err = meter.Int64Counter(
		"siefore_parse_errors",
		metric.WithDescription("Exports rejected by the extractor"),
	); err != nil {
		return nil, err
	}

	if m.UnitMismatches, err = meter.Int64Counter(
		"siefore_unit_mismatches",
		metric.WithDescription("Exports whose unit annotation differs from the expected scale"),
	); err != nil {
		return nil, err
	}

	if m.StageRuns, err = meter.Int64Counter(
		"siefore_stage_runs",
		metric.WithDescription("Pipeline stage executions by outcome"),
	); err != nil {
		return nil, err
	}

	if m.StageDuration, err = meter.Float64Histogram(
		"siefore_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.RetryAttempts, err = meter.Int64Counter(
		"siefore_retry_attempts",
		metric.WithDescription("Retried external calls"),
	); err != nil {
		return nil, err
	}

	if m.StoreRecords, err = meter.Int64Gauge(
		"siefore_store_records",
		metric.WithDescription("Records in the historical store after the last write"),
	); err != nil {
		return nil, err
	}

	if m.RecordsAdded, err = meter.Int64Counter(
		"siefore_records_integrated",
		metric.WithDescription("Records written by integration"),
	); err != nil {
		return nil, err
	}

	if m.ConversionRate, err = meter.Float64Gauge(
		"siefore_conversion_rate",
		metric.WithDescription("End-of-period conversion rate applied to the target period"),
	); err != nil {
		return nil, err
	}

	if m.CheckStatus, err = meter.Int64Gauge(
		"siefore_check_status",
		metric.WithDescription("Consistency check outcome: 0 pass, 1 warn, 2 fail"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequests, err = meter.Int64Counter(
		"siefore_http_requests",
		metric.WithDescription("Ledger API requests"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequestLatency, err = meter.Float64Histogram(
		"siefore_http_request_duration_seconds",
		metric.WithDescription("Ledger API request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NoopMetrics returns instruments that record nothing, for components
// constructed without telemetry.
func NoopMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// Attr is shorthand for a string attribute option.
func Attr(key, value string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(key, value))
}
