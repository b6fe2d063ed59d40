package operations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sieforeagent/internal/infrastructure"
	"sieforeagent/pkg/contracts/domain"
)

// TracerName is the instrumentation scope of run spans.
const TracerName = "sieforeagent/operations"

// RunReport summarises a run.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Target   domain.Period `json:"target"`
	Steps    []StepResult  `json:"steps"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed"`
}

// Manager runs steps one after another. The first failing step stops the
// run; later steps are reported as skipped.
type Manager struct {
	steps   []Step
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewManager creates a manager for steps. A nil metrics set records nothing.
func NewManager(metrics *infrastructure.PipelineMetrics, logger *slog.Logger, steps ...Step) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NoopMetrics()
	}
	return &Manager{
		steps:   steps,
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "operations")),
	}
}

// WithTracer replaces the global tracer, for callers holding their own
// provider.
func (m *Manager) WithTracer(t trace.Tracer) *Manager {
	if t != nil {
		m.tracer = t
	}
	return m
}

// Execute runs every step for target. The returned error, if any, is an
// *OperationError naming the failed step.
func (m *Manager) Execute(ctx context.Context, target domain.Period) (*RunReport, *RunState, error) {
	state := NewRunState(uuid.NewString(), target)
	ctx = infrastructure.WithTraceID(ctx, state.RunID)

	ctx, span := m.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.String("run.period", target.String()),
			attribute.Int("run.steps", len(m.steps)),
		))
	defer span.End()

	report := &RunReport{RunID: state.RunID, Target: target}
	start := time.Now()
	m.logOperationStart(ctx, state)

	var runErr *OperationError
	for _, step := range m.steps {
		if runErr != nil {
			report.Steps = append(report.Steps, StepResult{ID: step.ID(), Name: step.Name(), Status: StepStatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = NewCancellationError(step.ID(), err)
			report.Steps = append(report.Steps, StepResult{ID: step.ID(), Name: step.Name(), Status: StepStatusSkipped})
			continue
		}

		result, err := m.executeStep(ctx, state, step)
		report.Steps = append(report.Steps, result)
		if err != nil {
			runErr = WrapError(err, step.ID())
		}
	}

	report.Duration = time.Since(start)
	for _, w := range state.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}

	if runErr != nil {
		report.Failed = true
		runErr.Period = target
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		m.logOperationError(ctx, state, runErr)
		return report, state, runErr
	}

	span.SetStatus(codes.Ok, "")
	m.logOperationComplete(ctx, state, report.Duration)
	return report, state, nil
}

func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step) (StepResult, error) {
	ctx, span := m.tracer.Start(ctx, step.ID(),
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.String("step.id", step.ID()),
			attribute.String("run.period", state.Target.String()),
		))
	defer span.End()

	result := StepResult{ID: step.ID(), Name: step.Name(), Start: time.Now()}
	m.logStageStart(ctx, state, step)

	err := step.Execute(ctx, state)
	result.Duration = time.Since(result.Start)
	result.Message = state.messages[step.ID()]

	status := StepStatusCompleted
	if err != nil {
		status = StepStatusFailed
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logStageError(ctx, state, step, err)
	} else {
		span.SetStatus(codes.Ok, "")
		m.logStageComplete(ctx, state, step, result.Duration)
	}
	result.Status = status

	m.metrics.StageRuns.Add(ctx, 1,
		infrastructure.Attr("stage", step.ID()),
		infrastructure.Attr("status", string(status)))
	m.metrics.StageDuration.Record(ctx, result.Duration.Seconds(),
		infrastructure.Attr("stage", step.ID()))
	return result, err
}

func (m *Manager) logOperationStart(ctx context.Context, state *RunState) {
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("run_id", state.RunID),
		slog.String("period", state.Target.String()),
		slog.Int("step_count", len(m.steps)))
}

func (m *Manager) logOperationComplete(ctx context.Context, state *RunState, d time.Duration) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("run_id", state.RunID),
		slog.String("period", state.Target.String()),
		slog.Int64("duration_ms", d.Milliseconds()),
		slog.Int("warnings", len(state.Warnings)))
}

func (m *Manager) logOperationError(ctx context.Context, state *RunState, err *OperationError) {
	m.logger.ErrorContext(ctx, "operation_failed",
		slog.String("run_id", state.RunID),
		slog.String("period", state.Target.String()),
		slog.String("step", err.Step),
		slog.String("error_type", string(err.Type)),
		slog.String("error", err.Error()))
}

func (m *Manager) logStageStart(ctx context.Context, state *RunState, step Step) {
	m.logger.InfoContext(ctx, "stage_start",
		slog.String("run_id", state.RunID),
		slog.String("step", step.ID()))
}

func (m *Manager) logStageComplete(ctx context.Context, state *RunState, step Step, d time.Duration) {
	m.logger.InfoContext(ctx, "stage_complete",
		slog.String("run_id", state.RunID),
		slog.String("step", step.ID()),
		slog.Int64("duration_ms", d.Milliseconds()),
		slog.String("message", state.messages[step.ID()]))
}

func (m *Manager) logStageError(ctx context.Context, state *RunState, step Step, err error) {
	m.logger.ErrorContext(ctx, "stage_failed",
		slog.String("run_id", state.RunID),
		slog.String("step", step.ID()),
		slog.String("error", err.Error()))
}
