package operations

import (
	"context"
	"fmt"

	"sieforeagent/internal/approval"
	"sieforeagent/internal/dataprocessing"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/fx"
	"sieforeagent/internal/infrastructure"
	"sieforeagent/internal/ledger"
	"sieforeagent/internal/verification"
	"sieforeagent/pkg/contracts/domain"
)

// Step IDs, also used as span names and metric labels.
const (
	StepExtract   = "extract"
	StepEnrich    = "enrich"
	StepSubmit    = "submit"
	StepIntegrate = "integrate"
	StepVerify    = "verify"
)

// BatchExtractor extracts every export of a directory.
type BatchExtractor interface {
	ExtractDir(ctx context.Context, dir string, target domain.Period, allowPartial bool) (*dataprocessing.Batch, error)
}

func metricsOr(m *infrastructure.PipelineMetrics) *infrastructure.PipelineMetrics {
	if m == nil {
		return infrastructure.NoopMetrics()
	}
	return m
}

// ExtractStep reads the downloaded exports and writes the extract file.
type ExtractStep struct {
	Extractor    BatchExtractor
	Dir          string
	AllowPartial bool
	OutFile      string
	Metrics      *infrastructure.PipelineMetrics
}

func (s *ExtractStep) ID() string   { return StepExtract }
func (s *ExtractStep) Name() string { return "Extract period from exports" }

func (s *ExtractStep) Execute(ctx context.Context, state *RunState) error {
	metrics := metricsOr(s.Metrics)

	batch, err := s.Extractor.ExtractDir(ctx, s.Dir, state.Target, s.AllowPartial)
	if batch != nil {
		for _, f := range batch.Failures {
			metrics.ParseErrors.Add(ctx, 1, infrastructure.Attr("kind", parseKind(f.Err)))
			if err == nil {
				state.Warn(fmt.Errorf("%s skipped: %w", f.File, f.Err))
			}
		}
	}
	if err != nil {
		return err
	}

	for _, x := range batch.Extractions {
		metrics.RecordsExtracted.Add(ctx, int64(len(x.Records)), infrastructure.Attr("subfund", x.Subfund))
	}
	for _, w := range batch.Warnings() {
		if apperrors.Is(w, apperrors.ErrUnitMismatch) {
			metrics.UnitMismatches.Add(ctx, 1)
		}
		state.Warn(w)
	}

	state.Records = batch.Records()
	if s.OutFile != "" {
		if err := ledger.WriteRecords(s.OutFile, state.Records); err != nil {
			return err
		}
	}
	state.Note(StepExtract, fmt.Sprintf("%d records from %d exports", len(state.Records), len(batch.Extractions)))
	return nil
}

func parseKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{apperrors.ErrPeriodNotFound, "period_not_found"},
		{apperrors.ErrPeriodHeaderNotFound, "period_header_not_found"},
		{apperrors.ErrUnitAnnotationNotFound, "unit_annotation_not_found"},
		{apperrors.ErrSubfundUnrecognized, "subfund_unrecognized"},
		{apperrors.ErrConceptUnrecognized, "concept_unrecognized"},
	} {
		if apperrors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// EnrichStep fetches the rate series and converts the working set. When
// the working set is empty it is read from InFile.
type EnrichStep struct {
	Source   fx.RateSource
	Enricher *fx.Enricher
	InFile   string
	OutFile  string
	Metrics  *infrastructure.PipelineMetrics
}

func (s *EnrichStep) ID() string   { return StepEnrich }
func (s *EnrichStep) Name() string { return "Enrich with end-of-month rate" }

func (s *EnrichStep) Execute(ctx context.Context, state *RunState) error {
	if len(state.Records) == 0 && s.InFile != "" {
		records, err := ledger.ReadRecords(s.InFile)
		if err != nil {
			return err
		}
		state.Records = records
	}

	series, err := s.Source.Observations(ctx, state.Target)
	if err != nil {
		return err
	}
	enriched, err := s.Enricher.Enrich(state.Records, state.Target, series)
	if err != nil {
		return err
	}
	state.Records = enriched

	if s.OutFile != "" {
		if err := ledger.WriteRecords(s.OutFile, enriched); err != nil {
			return err
		}
	}
	if len(enriched) > 0 {
		metricsOr(s.Metrics).ConversionRate.Record(ctx, enriched[0].ConversionRate,
			infrastructure.Attr("period", state.Target.String()))
		state.Note(StepEnrich, fmt.Sprintf("%d records at rate %.4f", len(enriched), enriched[0].ConversionRate))
	}
	return nil
}

// SubmitStep writes the pending approval and the review summary.
type SubmitStep struct {
	Approvals    *approval.Manager
	EnrichedFile string
}

func (s *SubmitStep) ID() string   { return StepSubmit }
func (s *SubmitStep) Name() string { return "Submit for approval" }

func (s *SubmitStep) Execute(ctx context.Context, state *RunState) error {
	a, summary, err := s.Approvals.Submit(ctx, state.Records, s.EnrichedFile)
	if err != nil {
		return err
	}
	state.Approval = a
	state.Note(StepSubmit, fmt.Sprintf("approval %s pending, %d records, %.2f converted", a.ID, summary.TotalRecords, summary.TotalConverted))
	return nil
}

// IntegrateStep merges the approved enriched file into the store and marks
// the approval document approved.
type IntegrateStep struct {
	Approvals *approval.Manager
	Store     *ledger.Store
	Metrics   *infrastructure.PipelineMetrics
}

func (s *IntegrateStep) ID() string   { return StepIntegrate }
func (s *IntegrateStep) Name() string { return "Approve and integrate" }

func (s *IntegrateStep) Execute(ctx context.Context, state *RunState) error {
	a, err := s.Approvals.RequirePending(ctx)
	if err != nil {
		return err
	}
	if a.Period() != state.Target {
		return apperrors.NewPreconditionError(
			fmt.Sprintf("pending approval is for %s, run targets %s", a.Period(), state.Target),
			apperrors.ErrApprovalNotPending)
	}

	records, err := ledger.ReadRecords(a.EnrichedFile)
	if err != nil {
		return err
	}
	if len(records) != a.TotalRecords {
		return apperrors.NewPreconditionError(
			fmt.Sprintf("enriched file holds %d records, %d were approved", len(records), a.TotalRecords), nil).
			WithContext("file", a.EnrichedFile)
	}

	result, err := s.Store.Integrate(ctx, records)
	if err != nil {
		return err
	}
	approved, err := s.Approvals.MarkApproved(ctx, result.BackupFile, result.Stats.Added, result.Stats.Total)
	if err != nil {
		return err
	}

	metrics := metricsOr(s.Metrics)
	metrics.RecordsAdded.Add(ctx, int64(result.Stats.Added), infrastructure.Attr("period", state.Target.String()))
	metrics.StoreRecords.Record(ctx, int64(result.Stats.Total))

	state.Records = records
	state.Approval = approved
	state.Integration = &IntegrationOutcome{
		BackupFile: result.BackupFile,
		MirrorURI:  result.MirrorURI,
		Added:      result.Stats.Added,
		Replaced:   result.Stats.Replaced,
		Total:      result.Stats.Total,
	}
	state.Note(StepIntegrate, fmt.Sprintf("%d added, %d replaced, %d total", result.Stats.Added, result.Stats.Replaced, result.Stats.Total))
	return nil
}

// VerifyStep checks the target period against the one before it and
// writes the consistency report. Only a fatal finding fails the step.
type VerifyStep struct {
	Store      *ledger.Store
	Verifier   *verification.Verifier
	ReportFile string
	Metrics    *infrastructure.PipelineMetrics
}

func (s *VerifyStep) ID() string   { return StepVerify }
func (s *VerifyStep) Name() string { return "Verify consistency" }

func (s *VerifyStep) Execute(ctx context.Context, state *RunState) error {
	records, err := s.Store.Load(ctx)
	if err != nil {
		return err
	}
	report, err := s.Verifier.Verify(records, state.Target)
	if apperrors.Is(err, apperrors.ErrNoPriorPeriod) {
		// first period in the store
		state.Warn(err)
		state.Note(StepVerify, "no prior period to compare with")
		return nil
	}
	if err != nil {
		return err
	}
	state.Report = report

	if s.ReportFile != "" {
		if err := verification.WriteReport(s.ReportFile, report); err != nil {
			return err
		}
	}

	metrics := metricsOr(s.Metrics)
	for _, c := range report.Checks {
		metrics.CheckStatus.Record(ctx, statusValue(c.Status), infrastructure.Attr("check", c.Name))
		if c.Status != domain.CheckStatusPass {
			state.Warn(fmt.Errorf("%s: %s", c.Name, c.Message))
		}
	}
	state.Note(StepVerify, fmt.Sprintf("%s vs %s: %s", report.TargetPeriod, report.PriorPeriod, report.Status))

	if report.Fatal() {
		return apperrors.NewVerificationError("fatal consistency check failed", nil).
			WithContext("stage", StepVerify).
			WithContext("period", state.Target.String()).
			WithContext("report", s.ReportFile)
	}
	return nil
}

func statusValue(s domain.CheckStatus) int64 {
	switch s {
	case domain.CheckStatusWarn:
		return 1
	case domain.CheckStatusFail:
		return 2
	}
	return 0
}
