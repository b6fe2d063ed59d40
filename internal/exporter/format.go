package exporter

import (
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatFloat formats a value for CSV output. Stored values keep their
// full precision.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatDecimal formats a decimal for CSV output with two places.
func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatAmount formats a decimal for reading: grouped thousands, two places.
func formatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// formatPercent renders a growth ratio already expressed in percent.
func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}
