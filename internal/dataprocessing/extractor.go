package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// subfundPattern captures the sub-fund name from a folded header such as
// "siefore basica 60-64".
var subfundPattern = regexp.MustCompile(`siefore basica\s+(.+)`)

// Export is the first sheet of one CONSAR spreadsheet, as text rows.
type Export struct {
	Name string
	Rows [][]string
}

// OpenExport reads the first sheet of an xlsx file.
func OpenExport(path string) (*Export, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open export", err).WithContext("file", path)
	}
	defer f.Close()
	return readExport(f, filepath.Base(path))
}

// ReadExport reads the first sheet of an xlsx stream.
func ReadExport(r io.Reader, name string) (*Export, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read export", err).WithContext("file", name)
	}
	defer f.Close()
	return readExport(f, name)
}

func readExport(f *excelize.File, name string) (*Export, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("export has no sheets", nil).WithContext("file", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read sheet rows", err).
			WithContext("file", name).
			WithContext("sheet", sheets[0])
	}
	return &Export{Name: name, Rows: rows}, nil
}

// Extraction is the result of extracting one export for one period.
// Warnings carry non-fatal findings such as a unit mismatch.
type Extraction struct {
	Source     string
	Subfund    string
	Period     domain.Period
	Annotation string
	Scale      domain.UnitScale
	Records    []domain.Record
	Warnings   []error
}

// Extractor pulls a single period out of CONSAR "Detalle por Afores"
// exports.
type Extractor struct {
	layout     config.LayoutConfig
	subfunds   *AliasTable
	classifier *Classifier
	units      *UnitNormalizer
	logger     *slog.Logger
}

// NewExtractor creates an extractor from the pipeline configuration.
func NewExtractor(cfg config.PipelineConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	conceptNames := []string{
		domain.ConceptTotalAssets,
		domain.ConceptOutsourced,
		domain.ConceptFiduciary,
		domain.ConceptMutualFunds,
	}

	return &Extractor{
		layout:   cfg.Layout,
		subfunds: NewAliasTable(cfg.Subfunds, cfg.SubfundAliases),
		classifier: NewClassifier(
			NewAliasTable(cfg.Entities, nil),
			NewAliasTable(conceptNames, cfg.ConceptAliases),
			cfg.ConceptKeywords,
		),
		units:  NewUnitNormalizer(cfg.ExpectedUnit, cfg.Layout),
		logger: logger.With(slog.String("component", "extractor")),
	}
}

// Extract returns the records of export for the target period. Structural
// problems (no unit annotation, no period header, target column absent,
// unknown sub-fund or concept) fail the export; bad cells become zero.
func (e *Extractor) Extract(ctx context.Context, export *Export, target domain.Period) (*Extraction, error) {
	wrap := func(err error) error {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			appErr.WithContext("stage", "extract").
				WithContext("file", export.Name).
				WithContext("period", target.String())
		}
		return err
	}

	annotation, err := e.units.Annotation(export.Rows)
	if err != nil {
		return nil, wrap(err)
	}
	scale := ClassifyAnnotation(annotation)

	subfund, err := e.subfund(export.Rows)
	if err != nil {
		return nil, wrap(err)
	}

	col, err := e.targetColumn(export.Rows, target)
	if err != nil {
		return nil, wrap(err)
	}

	classified, unrecognized := e.classifier.Classify(export.Rows, e.layout.FirstDataRow, e.layout.LabelCol)
	if len(unrecognized) > 0 {
		labels := make([]string, len(unrecognized))
		for i, u := range unrecognized {
			labels[i] = u.Label
		}
		return nil, wrap(apperrors.NewParsingError(
			fmt.Sprintf("concept header not recognized: %s", strings.Join(labels, "; ")),
			apperrors.ErrConceptUnrecognized).
			WithContext("row", unrecognized[0].Index))
	}

	records := Emit(export.Rows, classified, col, subfund, target)
	Tag(records, scale)

	result := &Extraction{
		Source:     export.Name,
		Subfund:    subfund,
		Period:     target,
		Annotation: annotation,
		Scale:      scale,
		Records:    records,
	}

	if err := e.units.Check(scale); err != nil {
		result.Warnings = append(result.Warnings, wrap(err))
		e.logger.WarnContext(ctx, "unit scale differs from expected",
			slog.String("file", export.Name),
			slog.String("annotation", annotation),
			slog.String("detected", string(scale)),
			slog.String("expected", string(e.units.Expected())))
	}

	e.logger.InfoContext(ctx, "export extracted",
		slog.String("file", export.Name),
		slog.String("subfund", subfund),
		slog.String("period", target.String()),
		slog.Int("column", col),
		slog.Int("records", len(records)))

	return result, nil
}

// Emit is the second pass: one record per data row, valued from col.
func Emit(rows [][]string, classified []ClassifiedRow, col int, subfund string, target domain.Period) []domain.Record {
	records := make([]domain.Record, 0, len(classified))
	for _, row := range classified {
		if row.Kind != RowData {
			continue
		}
		cell := ""
		if col < len(rows[row.Index]) {
			cell = rows[row.Index][col]
		}
		records = append(records, domain.Record{
			Entity:      row.Entity,
			Subfund:     subfund,
			Concept:     row.Concept,
			PeriodYear:  target.Year,
			PeriodMonth: target.Month,
			ValueNative: CleanValue(cell),
		})
	}
	return records
}

// subfund reads the header cell and resolves the sub-fund name.
func (e *Extractor) subfund(rows [][]string) (string, error) {
	header := ""
	if e.layout.SubfundRow < len(rows) && e.layout.SubfundCol < len(rows[e.layout.SubfundRow]) {
		header = strings.TrimSpace(rows[e.layout.SubfundRow][e.layout.SubfundCol])
	}

	m := subfundPattern.FindStringSubmatch(Fold(header))
	if m == nil {
		return "", apperrors.NewParsingError(
			fmt.Sprintf("sub-fund header %q does not name a Siefore Básica", header),
			apperrors.ErrSubfundUnrecognized).
			WithContext("header", header)
	}

	name, ok := e.subfunds.Resolve(m[1])
	if !ok {
		return "", apperrors.NewParsingError(
			fmt.Sprintf("sub-fund %q has no canonical name", strings.TrimSpace(m[1])),
			apperrors.ErrSubfundUnrecognized).
			WithContext("header", header)
	}
	return name, nil
}

// PeriodColumns parses the period header row into column -> period.
func (e *Extractor) PeriodColumns(rows [][]string) map[int]domain.Period {
	cols := make(map[int]domain.Period)
	if e.layout.PeriodHeaderRow >= len(rows) {
		return cols
	}
	header := rows[e.layout.PeriodHeaderRow]
	for j := e.layout.FirstPeriodCol; j < len(header); j++ {
		if p, ok := ParsePeriodLabel(header[j]); ok {
			cols[j] = p
		}
	}
	return cols
}

// targetColumn locates the column labelled with target.
func (e *Extractor) targetColumn(rows [][]string, target domain.Period) (int, error) {
	cols := e.PeriodColumns(rows)
	if len(cols) == 0 {
		return 0, apperrors.NewParsingError("no parseable period labels in header row", apperrors.ErrPeriodHeaderNotFound).
			WithContext("row", e.layout.PeriodHeaderRow)
	}

	// lowest column wins if a label repeats
	idx := make([]int, 0, len(cols))
	for j := range cols {
		idx = append(idx, j)
	}
	sort.Ints(idx)
	for _, j := range idx {
		if cols[j] == target {
			return j, nil
		}
	}

	first, last := cols[idx[0]], cols[idx[len(idx)-1]]
	return 0, apperrors.NewParsingError(
		fmt.Sprintf("period %s not in header (%s .. %s)", target.Label(), first.Label(), last.Label()),
		apperrors.ErrPeriodNotFound)
}

// AvailablePeriods lists the periods an export covers, in column order.
func (e *Extractor) AvailablePeriods(export *Export) []domain.Period {
	cols := e.PeriodColumns(export.Rows)
	idx := make([]int, 0, len(cols))
	for j := range cols {
		idx = append(idx, j)
	}
	sort.Ints(idx)
	out := make([]domain.Period, len(idx))
	for i, j := range idx {
		out[i] = cols[j]
	}
	return out
}

// FileError records an export that failed extraction.
type FileError struct {
	File string
	Err  error
}

// Batch is the result of extracting every export in a directory.
type Batch struct {
	Period      domain.Period
	Extractions []*Extraction
	Failures    []FileError
}

// Records flattens the batch in file order.
func (b *Batch) Records() []domain.Record {
	var out []domain.Record
	for _, x := range b.Extractions {
		out = append(out, x.Records...)
	}
	return out
}

// Warnings collects every non-fatal finding of the batch.
func (b *Batch) Warnings() []error {
	var out []error
	for _, x := range b.Extractions {
		out = append(out, x.Warnings...)
	}
	return out
}

// ExtractDir extracts every export in dir independently. A failed export
// does not affect the others; the batch fails if any export failed unless
// allowPartial is set, and always fails when nothing was extracted.
func (e *Extractor) ExtractDir(ctx context.Context, dir string, target domain.Period, allowPartial bool) (*Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list export directory", err).WithContext("dir", dir)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && config.IsExportFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, apperrors.NewNotFoundError("xlsx exports").WithContext("dir", dir)
	}

	batch := &Batch{Period: target}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		export, err := OpenExport(path)
		if err == nil {
			var x *Extraction
			if x, err = e.Extract(ctx, export, target); err == nil {
				batch.Extractions = append(batch.Extractions, x)
				continue
			}
		}

		e.logger.ErrorContext(ctx, "export extraction failed",
			slog.String("file", filepath.Base(path)),
			slog.String("period", target.String()),
			slog.String("error", err.Error()))
		batch.Failures = append(batch.Failures, FileError{File: filepath.Base(path), Err: err})
	}

	if len(batch.Failures) > 0 && !allowPartial {
		errs := make([]error, len(batch.Failures))
		for i, f := range batch.Failures {
			errs[i] = fmt.Errorf("%s: %w", f.File, f.Err)
		}
		return batch, apperrors.NewParsingError(
			fmt.Sprintf("%d of %d exports failed", len(batch.Failures), len(files)),
			apperrors.Join(errs...)).
			WithContext("stage", "extract").
			WithContext("period", target.String())
	}

	if len(batch.Records()) == 0 {
		return batch, apperrors.NewParsingError("no records extracted", nil).
			WithContext("stage", "extract").
			WithContext("period", target.String())
	}

	return batch, nil
}
