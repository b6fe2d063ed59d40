package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// MigrationBackupPrefix names the backup taken before a unit migration.
const MigrationBackupPrefix = "consar_siefores_BEFORE_UNITS_FIX_"

// UnitMigration rescales stored values that were integrated with the wrong
// unit scale.
type UnitMigration struct {
	// Factor multiplies native and converted values.
	Factor float64
	// Tag is written to every migrated record.
	Tag domain.UnitScale
	// Periods limits the migration. Empty means every period.
	Periods []domain.Period
	// Reference is the period whose Total de Activo sum is checked before
	// and after the change.
	Reference domain.Period
	// GuardAbove, when positive, aborts unless the reference sum exceeds
	// it. GuardBelow, when positive, aborts unless it is below it. They
	// stop a migration from running twice.
	GuardAbove float64
	GuardBelow float64
}

// MigrationReport describes an applied migration.
type MigrationReport struct {
	Records         int     `json:"records"`
	Migrated        int     `json:"migrated"`
	ReferenceBefore float64 `json:"reference_before"`
	ReferenceAfter  float64 `json:"reference_after"`
	Ratio           float64 `json:"ratio"`
	BackupFile      string  `json:"backup_file,omitempty"`
}

func (m UnitMigration) selects(p domain.Period) bool {
	if len(m.Periods) == 0 {
		return true
	}
	for _, q := range m.Periods {
		if q == p {
			return true
		}
	}
	return false
}

func referenceTotal(records []domain.Record, period domain.Period) (float64, int) {
	sum := decimal.Zero
	n := 0
	for _, r := range records {
		if r.Period() == period && r.Concept == domain.ConceptTotalAssets {
			sum = sum.Add(decimal.NewFromFloat(r.ValueNative))
			n++
		}
	}
	return sum.InexactFloat64(), n
}

// Apply returns migrated copies of records. The input is not modified.
func (m UnitMigration) Apply(records []domain.Record) ([]domain.Record, MigrationReport, error) {
	if m.Factor <= 0 || math.IsInf(m.Factor, 0) || math.IsNaN(m.Factor) {
		return nil, MigrationReport{}, apperrors.NewAppValidationError(fmt.Sprintf("invalid factor %v", m.Factor), nil)
	}
	if !m.Tag.Known() {
		return nil, MigrationReport{}, apperrors.NewAppValidationError(fmt.Sprintf("invalid unit tag %q", m.Tag), nil)
	}

	before, n := referenceTotal(records, m.Reference)
	if n == 0 {
		return nil, MigrationReport{}, apperrors.NewPreconditionError(
			fmt.Sprintf("no %s records for reference period %s", domain.ConceptTotalAssets, m.Reference), nil)
	}
	if m.GuardAbove > 0 && before <= m.GuardAbove {
		return nil, MigrationReport{}, apperrors.NewPreconditionError(
			fmt.Sprintf("reference total %.2f is not above %.2f, store may already be migrated", before, m.GuardAbove), nil)
	}
	if m.GuardBelow > 0 && before >= m.GuardBelow {
		return nil, MigrationReport{}, apperrors.NewPreconditionError(
			fmt.Sprintf("reference total %.2f is not below %.2f, store may already be migrated", before, m.GuardBelow), nil)
	}

	factor := decimal.NewFromFloat(m.Factor)
	out := make([]domain.Record, len(records))
	report := MigrationReport{Records: len(records), ReferenceBefore: before}
	for i, r := range records {
		if m.selects(r.Period()) {
			r.ValueNative = decimal.NewFromFloat(r.ValueNative).Mul(factor).InexactFloat64()
			r.ValueConverted = decimal.NewFromFloat(r.ValueConverted).Mul(factor).InexactFloat64()
			r.UnitScale = m.Tag
			report.Migrated++
		}
		out[i] = r
	}

	report.ReferenceAfter, _ = referenceTotal(out, m.Reference)
	if before != 0 {
		report.Ratio = report.ReferenceAfter / before
	}
	if m.selects(m.Reference) && before != 0 && math.Abs(report.Ratio-m.Factor) > m.Factor*1e-6 {
		return nil, report, apperrors.NewVerificationError(
			fmt.Sprintf("reference ratio %.6f does not match factor %v", report.Ratio, m.Factor), nil)
	}
	return out, report, nil
}

// MigrateUnits applies m to the store after backing it up.
func MigrateUnits(ctx context.Context, store *Store, m UnitMigration, logger *slog.Logger) (*MigrationReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var report MigrationReport
	backup, err := store.Rewrite(ctx, MigrationBackupPrefix, func(records []domain.Record) ([]domain.Record, error) {
		out, r, err := m.Apply(records)
		report = r
		return out, err
	})
	report.BackupFile = backup
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			appErr.WithContext("stage", "migrate_units").WithContext("file", store.Path())
		}
		return nil, err
	}

	logger.InfoContext(ctx, "units migrated",
		slog.Int("records", report.Records),
		slog.Int("migrated", report.Migrated),
		slog.Float64("reference_before", report.ReferenceBefore),
		slog.Float64("reference_after", report.ReferenceAfter),
		slog.Float64("ratio", report.Ratio),
		slog.String("backup", backup))
	return &report, nil
}
