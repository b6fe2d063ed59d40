package exporter

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

var (
	dec24 = domain.Period{Year: "2024", Month: "12"}
	oct25 = domain.Period{Year: "2025", Month: "10"}
)

func setupWriter(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	dir := t.TempDir()
	return NewCSVWriter(&config.Paths{ReportsDir: filepath.Join(dir, "reports")},
		slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

func rec(entity, subfund, concept string, p domain.Period, native, converted float64) domain.Record {
	return domain.Record{
		Entity: entity, Subfund: subfund, Concept: concept,
		PeriodYear: p.Year, PeriodMonth: p.Month,
		ValueNative: native, ConversionRate: 20, ValueConverted: converted,
		UnitScale: domain.UnitScaleThousands, Confidence: domain.ConfidenceFull,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "missing BOM")
	rows, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSVResolvesIntoReports(t *testing.T) {
	w, dir := setupWriter(t)

	path, err := w.WriteCSV("out/test.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "Básica, Inicial"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "out", "test.csv"), path)

	rows := readCSV(t, path)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "Básica, Inicial"}}, rows)

	abs := filepath.Join(dir, "abs.csv")
	path, err = w.WriteCSV(abs, WriteOptions{Records: [][]string{{"x"}}})
	require.NoError(t, err)
	assert.Equal(t, abs, path)
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestExportPeriod(t *testing.T) {
	w, _ := setupWriter(t)
	records := []domain.Record{
		rec("SURA", "60-64", domain.ConceptTotalAssets, oct25, 2500.5, 125.025),
		rec("Azteca", "65-69", domain.ConceptTotalAssets, oct25, 1000, 50),
		rec("Azteca", "60-64", domain.ConceptTotalAssets, oct25, 900, 45),
		rec("Azteca", "60-64", domain.ConceptTotalAssets, dec24, 1, 1),
	}

	path, err := w.ExportPeriod(records, oct25, "siefores_2025-10.csv")
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, RecordHeaders, rows[0])
	assert.Equal(t, []string{"Azteca", "60-64", "Total de Activo", "2025", "10", "900", "20", "45", "miles_de_pesos", "full"}, rows[1])
	assert.Equal(t, "65-69", rows[2][1])
	assert.Equal(t, "2500.5", rows[3][5])

	_, err = w.ExportPeriod(records, domain.Period{Year: "2023", Month: "01"}, "none.csv")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func comparisonRecords() []domain.Record {
	return []domain.Record{
		// accent variant stored in an older period
		rec("Azteca", "60-64", "Inversion en Fondos Mutuos", dec24, 1000, 50),
		rec("Azteca", "65-69", "Inversion en Fondos Mutuos", dec24, 1000, 50),
		rec("SURA", "60-64", "Inversion en Fondos Mutuos", dec24, 500, 25),
		rec("SURA", "60-64", domain.ConceptTotalAssets, dec24, 99999, 9999),

		rec("Azteca", "60-64", domain.ConceptMutualFunds, oct25, 1100, 60),
		rec("Azteca", "65-69", domain.ConceptMutualFunds, oct25, 1100, 60),
		rec("Coppel", "60-64", domain.ConceptMutualFunds, oct25, 300, 15),
		rec("SURA", "60-64", domain.ConceptOutsourced, oct25, 700, 35),
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare(comparisonRecords(), dec24, oct25, domain.ConceptMutualFunds)
	require.NoError(t, err)
	require.Len(t, c.Rows, 3)

	azteca := c.Rows[0]
	assert.Equal(t, "Azteca", azteca.Entity)
	assert.True(t, decimal.NewFromInt(2000).Equal(azteca.Base.Native))
	assert.True(t, decimal.NewFromInt(2200).Equal(azteca.Target.Native))
	assert.Equal(t, "200", azteca.GrowthNative().String())
	assert.Equal(t, "10.0", azteca.PercentNative().StringFixed(1))
	assert.Equal(t, "20.0", azteca.PercentConverted().StringFixed(1))

	// absent in the base period: growth from zero, percentage zero
	coppel := c.Rows[1]
	assert.Equal(t, "Coppel", coppel.Entity)
	assert.True(t, coppel.Base.Native.IsZero())
	assert.True(t, coppel.PercentNative().IsZero())

	sura := c.Rows[2]
	assert.True(t, sura.Target.Native.IsZero())
	assert.Equal(t, "-100.0", sura.PercentNative().StringFixed(1))

	assert.Equal(t, "TOTAL", c.Total.Entity)
	assert.Equal(t, "2500", c.Total.Base.Native.String())
	assert.Equal(t, "2500", c.Total.Target.Native.String())
}

func TestCompareCombinedConcepts(t *testing.T) {
	c, err := Compare(comparisonRecords(), dec24, oct25, domain.ConceptOutsourced, domain.ConceptMutualFunds)
	require.NoError(t, err)
	assert.Equal(t, "3200", c.Total.Target.Native.String())
	assert.Equal(t, "2500", c.Total.Base.Native.String())
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare(comparisonRecords(), dec24, oct25)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = Compare(comparisonRecords(), domain.Period{Year: "2020", Month: "01"}, oct25, domain.ConceptMutualFunds)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = Compare(comparisonRecords(), dec24, oct25, domain.ConceptFiduciary)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestComparisonOutputs(t *testing.T) {
	c, err := Compare(comparisonRecords(), dec24, oct25, domain.ConceptMutualFunds)
	require.NoError(t, err)

	var md bytes.Buffer
	require.NoError(t, c.WriteMarkdown(&md, "Mutual Funds"))
	lines := strings.Split(strings.TrimSpace(md.String()), "\n")
	assert.Equal(t, "## Mutual Funds", lines[0])
	assert.Contains(t, lines[2], "| 2024-12 MXN | 2025-10 MXN |")
	assert.Equal(t, "| Azteca | 2,000.00 | 2,200.00 | 200.00 | 10.0% | $100.00 | $120.00 | $20.00 | 20.0% |", lines[4])
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "| **TOTAL** | **2,500.00** |"))

	w, _ := setupWriter(t)
	path, err := w.WriteComparison("comparison.csv", c)
	require.NoError(t, err)
	rows := readCSV(t, path)
	require.Len(t, rows, 5)
	assert.Equal(t, "2024-12 valueMXN", rows[0][1])
	assert.Equal(t, []string{"Azteca", "2000.00", "2200.00", "200.00", "10.0", "100.00", "120.00", "20.00", "20.0"}, rows[1])
	assert.Equal(t, "TOTAL", rows[4][0])
}
