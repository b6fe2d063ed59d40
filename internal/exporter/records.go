package exporter

import (
	"fmt"
	"sort"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/ledger"
	"sieforeagent/pkg/contracts/domain"
)

// RecordHeaders are the ledger field names, in store order.
var RecordHeaders = []string{
	"Afore", "Siefore", "Concept", "PeriodYear", "PeriodMonth",
	"valueMXN", "FX_EOM", "valueUSD", "units", "confidence",
}

// RecordRows renders records as CSV rows, sorted by entity, sub-fund and
// concept.
func RecordRows(records []domain.Record) [][]string {
	sorted := append([]domain.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Subfund != b.Subfund {
			return a.Subfund < b.Subfund
		}
		return a.Concept < b.Concept
	})

	rows := make([][]string, len(sorted))
	for i, r := range sorted {
		rows[i] = []string{
			r.Entity, r.Subfund, r.Concept, r.PeriodYear, r.PeriodMonth,
			formatFloat(r.ValueNative),
			formatFloat(r.ConversionRate),
			formatFloat(r.ValueConverted),
			string(r.UnitScale),
			string(r.Confidence),
		}
	}
	return rows
}

// ExportPeriod writes the records of period to filePath.
func (w *CSVWriter) ExportPeriod(records []domain.Record, period domain.Period, filePath string) (string, error) {
	selected := ledger.Filter(records, period)
	if len(selected) == 0 {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("records for %s", period))
	}
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   RecordHeaders,
		Records:   RecordRows(selected),
		BOMPrefix: true,
	})
}
