// Package exporter writes ledger data out for people rather than for the
// pipeline.
//
// CSVWriter is the file layer: headers, a UTF-8 BOM so spreadsheet tools
// pick the right encoding, and relative names resolved under the reports
// directory.
//
// ExportPeriod writes one period's records with the ledger field names as
// headers. Compare aggregates a set of concepts per AFORE for two periods
// and reports the growth in both currencies; the result renders as CSV or
// as a markdown table.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	c, err := exporter.Compare(records, base, target, domain.ConceptMutualFunds)
//	if err != nil {
//		return err
//	}
//	err = w.WriteComparison("comparison_2024-12_2025-10.csv", c)
package exporter
