package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieforeagent/internal/approval"
	"sieforeagent/internal/config"
	"sieforeagent/internal/dataprocessing"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/fx"
	"sieforeagent/internal/ledger"
	"sieforeagent/internal/verification"
	"sieforeagent/pkg/contracts/domain"
)

var entities = []string{"Azteca", "Citibanamex", "Coppel", "Inbursa", "Invercap", "PensionISSSTE", "Principal", "Profuturo", "SURA", "XXI Banorte"}

func periodRecords(p domain.Period, native float64) []domain.Record {
	out := make([]domain.Record, len(entities))
	for i, e := range entities {
		out[i] = domain.Record{
			Entity:      e,
			Subfund:     "60-64",
			Concept:     domain.ConceptTotalAssets,
			PeriodYear:  p.Year,
			PeriodMonth: p.Month,
			ValueNative: native,
			UnitScale:   domain.UnitScaleThousands,
			Confidence:  domain.ConfidenceFull,
		}
	}
	return out
}

type fakeExtractor struct {
	batch *dataprocessing.Batch
	err   error
}

func (f *fakeExtractor) ExtractDir(context.Context, string, domain.Period, bool) (*dataprocessing.Batch, error) {
	return f.batch, f.err
}

func batchOf(records []domain.Record, warnings ...error) *dataprocessing.Batch {
	return &dataprocessing.Batch{
		Period: oct24,
		Extractions: []*dataprocessing.Extraction{{
			Source:   "Reporte.xlsx",
			Subfund:  "60-64",
			Period:   oct24,
			Scale:    domain.UnitScaleThousands,
			Records:  records,
			Warnings: warnings,
		}},
	}
}

type fakeRates struct {
	obs   []domain.RateObservation
	err   error
	calls int
}

func (f *fakeRates) Observations(context.Context, domain.Period) ([]domain.RateObservation, error) {
	f.calls++
	return f.obs, f.err
}

func octoberRates() *fakeRates {
	return &fakeRates{obs: []domain.RateObservation{
		{Date: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), Rate: 19.5},
		{Date: time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC), Rate: 20},
	}}
}

type pipelineFixture struct {
	dir       string
	approvals *approval.Manager
	store     *ledger.Store
	extracted string
	enriched  string
	report    string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	return &pipelineFixture{
		dir:       dir,
		approvals: approval.NewManager(filepath.Join(dir, "approval_state.json"), filepath.Join(dir, "review_summary.json"), quietLogger()),
		store:     ledger.NewStore(filepath.Join(dir, "consar_siefores_with_usd.json"), filepath.Join(dir, "backups"), quietLogger()),
		extracted: filepath.Join(dir, "extracted.json"),
		enriched:  filepath.Join(dir, "enriched.json"),
		report:    filepath.Join(dir, "verification_report.json"),
	}
}

func (f *pipelineFixture) processSteps(extractor BatchExtractor, rates fx.RateSource) []Step {
	return []Step{
		&ExtractStep{Extractor: extractor, Dir: f.dir, OutFile: f.extracted},
		&EnrichStep{Source: rates, Enricher: fx.NewEnricher(quietLogger()), OutFile: f.enriched},
		&SubmitStep{Approvals: f.approvals, EnrichedFile: f.enriched},
	}
}

func (f *pipelineFixture) integrateSteps() []Step {
	return []Step{
		&IntegrateStep{Approvals: f.approvals, Store: f.store},
		&VerifyStep{Store: f.store, Verifier: verification.NewVerifier(config.DefaultDriftThreshold, quietLogger()), ReportFile: f.report},
	}
}

func (f *pipelineFixture) seedStore(t *testing.T, records []domain.Record) {
	t.Helper()
	require.NoError(t, ledger.WriteRecords(f.store.Path(), records))
}

func enrichedSeptember() []domain.Record {
	records := periodRecords(sep24, 100)
	for i := range records {
		records[i].ConversionRate = 20
		records[i].ValueConverted = fx.Convert(100, 20)
	}
	return records
}

func TestPipelineProcessThenIntegrate(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedStore(t, enrichedSeptember())

	mismatch := apperrors.NewUnitMismatchError(string(domain.UnitScaleMillions), string(domain.UnitScaleThousands))
	extractor := &fakeExtractor{batch: batchOf(periodRecords(oct24, 104), mismatch)}
	rates := octoberRates()

	_, state, err := NewManager(nil, quietLogger(), f.processSteps(extractor, rates)...).Execute(context.Background(), oct24)
	require.NoError(t, err)
	require.Len(t, state.Warnings, 1)
	assert.ErrorIs(t, state.Warnings[0], apperrors.ErrUnitMismatch)
	assert.Equal(t, 1, rates.calls)

	extracted, err := ledger.ReadRecords(f.extracted)
	require.NoError(t, err)
	assert.Len(t, extracted, 10)
	assert.Zero(t, extracted[0].ConversionRate)

	enriched, err := ledger.ReadRecords(f.enriched)
	require.NoError(t, err)
	require.Len(t, enriched, 10)
	assert.Equal(t, 20.0, enriched[0].ConversionRate)
	assert.InDelta(t, 5.2, enriched[0].ValueConverted, 1e-9)

	pending, err := f.approvals.RequirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, oct24, pending.Period())
	assert.Equal(t, 10, pending.TotalRecords)
	assert.Equal(t, f.enriched, pending.EnrichedFile)
	assert.FileExists(t, filepath.Join(f.dir, "review_summary.json"))

	// the store is untouched until integration
	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 10)

	report, state, err := NewManager(nil, quietLogger(), f.integrateSteps()...).Execute(context.Background(), oct24)
	require.NoError(t, err)
	assert.False(t, report.Failed)

	require.NotNil(t, state.Integration)
	assert.Equal(t, 10, state.Integration.Added)
	assert.Equal(t, 0, state.Integration.Replaced)
	assert.Equal(t, 20, state.Integration.Total)
	assert.FileExists(t, state.Integration.BackupFile)

	require.NotNil(t, state.Report)
	assert.Equal(t, domain.CheckStatusPass, state.Report.Status)
	assert.Equal(t, sep24, state.Report.PriorPeriod)
	assert.FileExists(t, f.report)

	approved, err := f.approvals.RequireApproved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, approved.NewRecordsAdded)
	assert.Equal(t, 20, approved.TotalRecordsInDB)
	assert.Equal(t, state.Integration.BackupFile, approved.BackupFile)

	// a second integration without a new submission is refused
	_, _, err = NewManager(nil, quietLogger(), f.integrateSteps()...).Execute(context.Background(), oct24)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeInvalidState, GetErrorType(err))
	assert.ErrorIs(t, err, apperrors.ErrApprovalNotPending)
}

func TestExtractStepFailures(t *testing.T) {
	failure := dataprocessing.FileError{
		File: "Reporte (3).xlsx",
		Err:  apperrors.NewParsingError("no unit annotation", apperrors.ErrUnitAnnotationNotFound),
	}

	t.Run("strict", func(t *testing.T) {
		batch := batchOf(periodRecords(oct24, 1))
		batch.Failures = []dataprocessing.FileError{failure}
		step := &ExtractStep{Extractor: &fakeExtractor{batch: batch, err: failure.Err}}

		state := NewRunState("run", oct24)
		err := step.Execute(context.Background(), state)
		assert.ErrorIs(t, err, apperrors.ErrUnitAnnotationNotFound)
		assert.Empty(t, state.Records)
	})

	t.Run("partial", func(t *testing.T) {
		batch := batchOf(periodRecords(oct24, 1))
		batch.Failures = []dataprocessing.FileError{failure}
		step := &ExtractStep{Extractor: &fakeExtractor{batch: batch}, AllowPartial: true}

		state := NewRunState("run", oct24)
		require.NoError(t, step.Execute(context.Background(), state))
		assert.Len(t, state.Records, 10)
		require.Len(t, state.Warnings, 1)
		assert.Contains(t, state.Warnings[0].Error(), "Reporte (3).xlsx skipped")
	})
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, "unit_annotation_not_found", parseKind(apperrors.NewParsingError("x", apperrors.ErrUnitAnnotationNotFound)))
	assert.Equal(t, "concept_unrecognized", parseKind(fmt.Errorf("wrapped: %w", apperrors.ErrConceptUnrecognized)))
	assert.Equal(t, "other", parseKind(os.ErrNotExist))
}

func TestEnrichStepReadsInputFile(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, ledger.WriteRecords(f.extracted, periodRecords(oct24, 40)))

	step := &EnrichStep{Source: octoberRates(), Enricher: fx.NewEnricher(quietLogger()), InFile: f.extracted}
	state := NewRunState("run", oct24)
	require.NoError(t, step.Execute(context.Background(), state))
	require.Len(t, state.Records, 10)
	assert.InDelta(t, 2.0, state.Records[0].ValueConverted, 1e-9)
}

func TestEnrichStepRateUnavailable(t *testing.T) {
	step := &EnrichStep{Source: &fakeRates{}, Enricher: fx.NewEnricher(quietLogger())}
	state := NewRunState("run", oct24)
	state.Records = periodRecords(oct24, 1)

	err := step.Execute(context.Background(), state)
	assert.ErrorIs(t, err, apperrors.ErrFXUnavailable)
}

func TestIntegrateStepRejectsOtherPeriod(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, ledger.WriteRecords(f.enriched, periodRecords(sep24, 1)))
	_, _, err := f.approvals.Submit(context.Background(), periodRecords(sep24, 1), f.enriched)
	require.NoError(t, err)

	step := &IntegrateStep{Approvals: f.approvals, Store: f.store}
	err = step.Execute(context.Background(), NewRunState("run", oct24))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypePrecondition))

	_, err = os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestIntegrateStepRejectsChangedFile(t *testing.T) {
	f := newPipelineFixture(t)
	records := periodRecords(oct24, 1)
	require.NoError(t, ledger.WriteRecords(f.enriched, records))
	_, _, err := f.approvals.Submit(context.Background(), records, f.enriched)
	require.NoError(t, err)

	// the file changes after review
	require.NoError(t, ledger.WriteRecords(f.enriched, records[:7]))

	step := &IntegrateStep{Approvals: f.approvals, Store: f.store}
	err = step.Execute(context.Background(), NewRunState("run", oct24))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypePrecondition))

	_, err = f.approvals.RequirePending(context.Background())
	assert.NoError(t, err)
}

func TestVerifyStepFirstPeriod(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedStore(t, periodRecords(oct24, 1))

	step := &VerifyStep{Store: f.store, Verifier: verification.NewVerifier(0.1, quietLogger()), ReportFile: f.report}
	state := NewRunState("run", oct24)
	require.NoError(t, step.Execute(context.Background(), state))
	require.Len(t, state.Warnings, 1)
	assert.ErrorIs(t, state.Warnings[0], apperrors.ErrNoPriorPeriod)
	assert.Nil(t, state.Report)
	assert.NoFileExists(t, f.report)
}

func TestVerifyStepFatalCount(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedStore(t, append(enrichedSeptember(), periodRecords(oct24, 1)[:9]...))

	_, state, err := NewManager(nil, quietLogger(),
		&VerifyStep{Store: f.store, Verifier: verification.NewVerifier(0.1, quietLogger()), ReportFile: f.report},
	).Execute(context.Background(), oct24)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
	require.NotNil(t, state.Report)
	assert.Equal(t, domain.CheckStatusFail, state.Report.Status)
	// the report is written even when a check fails
	assert.FileExists(t, f.report)
}
