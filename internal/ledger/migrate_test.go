package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

func TestUnitMigrationApply(t *testing.T) {
	records := append(periodRecords(sep24, 2, 5_000_000), periodRecords(oct24, 2, 5_000)...)

	m := UnitMigration{
		Factor:     1000,
		Tag:        domain.UnitScaleThousands,
		Periods:    []domain.Period{oct24},
		Reference:  oct24,
		GuardBelow: 1_000_000,
	}
	out, report, err := m.Apply(records)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Records)
	assert.Equal(t, 2, report.Migrated)
	assert.InDelta(t, 10_000, report.ReferenceBefore, 1e-9)
	assert.InDelta(t, 10_000_000, report.ReferenceAfter, 1e-6)
	assert.InDelta(t, 1000, report.Ratio, 1e-9)

	assert.Equal(t, 5_000_000.0, out[0].ValueNative, "unselected periods untouched")
	assert.Equal(t, 5_000_000.0, out[2].ValueNative)
	assert.InDelta(t, 250_000, out[2].ValueConverted, 1e-6)
	assert.Equal(t, 20.0, out[2].ConversionRate, "rates are never rescaled")
	assert.Equal(t, 5_000.0, records[2].ValueNative, "input untouched")

	// running it again trips the guard
	_, _, err = m.Apply(out)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypePrecondition))
}

func TestUnitMigrationNormalizeAll(t *testing.T) {
	records := periodRecords(oct24, 3, 2_000_000_000)
	for i := range records {
		records[i].UnitScale = ""
	}

	m := UnitMigration{Factor: 0.001, Tag: domain.UnitScaleThousands, Reference: oct24, GuardAbove: 1_000_000_000}
	out, report, err := m.Apply(records)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Migrated)
	for _, r := range out {
		assert.InDelta(t, 2_000_000, r.ValueNative, 1e-6)
		assert.Equal(t, domain.UnitScaleThousands, r.UnitScale)
	}
}

func TestUnitMigrationRejects(t *testing.T) {
	records := periodRecords(oct24, 1, 10)
	tests := []struct {
		name    string
		m       UnitMigration
		errType apperrors.ErrorType
	}{
		{"zero factor", UnitMigration{Factor: 0, Tag: domain.UnitScaleThousands, Reference: oct24}, apperrors.ErrTypeValidation},
		{"unknown tag", UnitMigration{Factor: 2, Tag: domain.UnitScaleUnknown, Reference: oct24}, apperrors.ErrTypeValidation},
		{"missing reference", UnitMigration{Factor: 2, Tag: domain.UnitScaleThousands, Reference: nov24}, apperrors.ErrTypePrecondition},
		{"guard above", UnitMigration{Factor: 2, Tag: domain.UnitScaleThousands, Reference: oct24, GuardAbove: 100}, apperrors.ErrTypePrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.m.Apply(records)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType))
		})
	}
}

func TestMigrateUnits(t *testing.T) {
	s, dir := newTestStore(t)
	seed(t, s, append(periodRecords(sep24, 2, 5_000_000), periodRecords(oct24, 2, 5_000)...))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	m := UnitMigration{Factor: 1000, Tag: domain.UnitScaleThousands, Periods: []domain.Period{oct24}, Reference: oct24}
	report, err := MigrateUnits(context.Background(), s, m, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Migrated)

	assert.Equal(t, filepath.Join(dir, "backups"), filepath.Dir(report.BackupFile))
	assert.True(t, strings.HasPrefix(filepath.Base(report.BackupFile), MigrationBackupPrefix))
	backup, err := os.ReadFile(report.BackupFile)
	require.NoError(t, err)
	assert.Equal(t, before, backup)

	records, err := s.RecordsFor(context.Background(), oct24)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, 5_000_000.0, r.ValueNative)
	}
}

func TestMigrateUnitsFailureKeepsStore(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s, periodRecords(oct24, 2, 5_000))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	_, err = MigrateUnits(context.Background(), s, UnitMigration{Factor: 1000, Tag: domain.UnitScaleThousands, Reference: sep24}, quietLogger())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "migrate_units", appErr.Context["stage"])

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrateUnitsMissingStore(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := MigrateUnits(context.Background(), s, UnitMigration{Factor: 2, Tag: domain.UnitScaleThousands, Reference: oct24}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
