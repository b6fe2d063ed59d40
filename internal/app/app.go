package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"sieforeagent/internal/approval"
	"sieforeagent/internal/config"
	"sieforeagent/internal/dataprocessing"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/fx"
	"sieforeagent/internal/infrastructure"
	"sieforeagent/internal/ledger"
	"sieforeagent/internal/operations"
	"sieforeagent/internal/retry"
	"sieforeagent/internal/scraper"
	"sieforeagent/internal/validation"
	"sieforeagent/internal/verification"
	"sieforeagent/pkg/contracts/domain"
)

// Options tune how an Application is assembled.
type Options struct {
	// ConfigFile overrides the YAML lookup when set.
	ConfigFile string
	// TraceOut receives span output when tracing is enabled.
	TraceOut io.Writer
	// Logger replaces the process logger. Tests use it.
	Logger *slog.Logger
}

// Application holds the components shared by every command.
type Application struct {
	Name      string
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Validator *validation.RecordValidator
	Store     *ledger.Store
	Approvals *approval.Manager
	Verifier  *verification.Verifier

	started time.Time
}

// New loads configuration and wires the components for the named command.
func New(ctx context.Context, name string, opts Options) (*Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFile(opts.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = infrastructure.InitializeLogger(cfg.Logging, paths.LogsDir); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	logger = logger.With(slog.String("command", name))
	paths.LogPathResolution(logger)

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, opts.TraceOut, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	validator := validation.NewRecordValidator(cfg.Pipeline.Entities)

	storeOpts := []ledger.StoreOption{ledger.WithValidator(validator)}
	if cfg.Backup.S3Enabled {
		mirror, err := ledger.NewS3Mirror(ctx, cfg.Backup, logger)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, ledger.WithMirror(mirror))
	}

	a := &Application{
		Name:      name,
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		Telemetry: telemetry,
		Validator: validator,
		Store:     ledger.NewStore(paths.StoreFile, paths.BackupsDir, logger, storeOpts...),
		Approvals: approval.NewManager(paths.ApprovalFile, paths.ReviewFile, logger, approval.WithValidator(validator)),
		Verifier:  verification.NewVerifier(cfg.Pipeline.DriftThreshold, logger),
		started:   time.Now(),
	}

	logger.InfoContext(ctx, "command starting",
		slog.String("version", infrastructure.ServiceVersion),
		slog.String("root", paths.Root),
		slog.String("store", paths.StoreFile))
	return a, nil
}

// Policy returns the configured retry policy for an external call. Every
// retry is counted in siefore_retry_attempts.
func (a *Application) Policy(operation string) retry.Policy {
	p := retry.FromConfig(a.Config.Retry, operation, a.Logger)
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.Telemetry.Metrics.RetryAttempts.Add(context.Background(), 1, infrastructure.Attr("operation", operation))
	}
	return p
}

// Extractor returns an extractor for the configured vocabulary and layout.
func (a *Application) Extractor() *dataprocessing.Extractor {
	return dataprocessing.NewExtractor(a.Config.Pipeline, a.Logger)
}

// RateSource returns the Banxico client for the configured series.
func (a *Application) RateSource() *fx.BanxicoClient {
	return fx.NewBanxicoClient(a.Config.Rates, a.Policy("fetch "+a.Config.Rates.Series), a.Logger)
}

// Pipeline returns a step manager that records into this process's
// telemetry.
func (a *Application) Pipeline(steps ...operations.Step) *operations.Manager {
	return operations.NewManager(a.Telemetry.Metrics, a.Logger, steps...).WithTracer(a.Telemetry.Tracer)
}

// Run executes steps for target and logs the report.
func (a *Application) Run(ctx context.Context, target domain.Period, steps ...operations.Step) (*operations.RunReport, *operations.RunState, error) {
	report, state, err := a.Pipeline(steps...).Execute(ctx, target)
	if report != nil {
		for _, s := range report.Steps {
			a.Logger.InfoContext(ctx, "step result",
				slog.String("step", s.ID),
				slog.String("status", string(s.Status)),
				slog.String("message", s.Message))
		}
	}
	return report, state, err
}

// TargetPeriod parses flagValue ("YYYY-MM"), or reads the run metadata
// written by the scraper when it is empty.
func (a *Application) TargetPeriod(flagValue string) (domain.Period, error) {
	if flagValue != "" {
		p, err := domain.ParsePeriod(flagValue)
		if err != nil {
			return domain.Period{}, apperrors.NewAppValidationError("invalid -period", err)
		}
		return p, nil
	}
	p, err := scraper.ReadMetadata(a.Paths.MetadataFile)
	if err != nil {
		return domain.Period{}, err
	}
	a.Logger.Info("target period from run metadata",
		slog.String("period", p.String()),
		slog.String("file", a.Paths.MetadataFile))
	return p, nil
}

// PrintJSON writes v to w as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Close flushes metrics to the textfile and shuts telemetry down.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Config.Telemetry.MetricsEnabled {
		if err := a.Telemetry.WriteTextfile(a.Paths.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.Logger.InfoContext(ctx, "command finished", slog.Duration("elapsed", time.Since(a.started)))
	return apperrors.Join(errs...)
}

// Exit logs err and terminates the process with a non-zero status.
func (a *Application) Exit(ctx context.Context, err error) {
	a.Logger.ErrorContext(ctx, "command failed", slog.String("error", err.Error()))
	_ = a.Close(ctx)
	infrastructure.CloseLogFile()
	os.Exit(1)
}
