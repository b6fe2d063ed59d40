package exporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"sieforeagent/internal/dataprocessing"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

var hundred = decimal.NewFromInt(100)

// Amounts are the native and converted sums of one entity in one period.
type Amounts struct {
	Native    decimal.Decimal `json:"native"`
	Converted decimal.Decimal `json:"converted"`
}

func (a Amounts) add(b Amounts) Amounts {
	return Amounts{Native: a.Native.Add(b.Native), Converted: a.Converted.Add(b.Converted)}
}

// ComparisonRow holds one entity's totals in both periods.
type ComparisonRow struct {
	Entity string  `json:"entity"`
	Base   Amounts `json:"base"`
	Target Amounts `json:"target"`
}

// GrowthNative is the native change from base to target.
func (r ComparisonRow) GrowthNative() decimal.Decimal { return r.Target.Native.Sub(r.Base.Native) }

// GrowthConverted is the converted change from base to target.
func (r ComparisonRow) GrowthConverted() decimal.Decimal {
	return r.Target.Converted.Sub(r.Base.Converted)
}

// PercentNative is the native growth in percent, zero when the base is not
// positive.
func (r ComparisonRow) PercentNative() decimal.Decimal {
	return percent(r.GrowthNative(), r.Base.Native)
}

// PercentConverted is the converted growth in percent, zero when the base
// is not positive.
func (r ComparisonRow) PercentConverted() decimal.Decimal {
	return percent(r.GrowthConverted(), r.Base.Converted)
}

func percent(growth, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return growth.Div(base).Mul(hundred)
}

// Comparison is the per-entity growth of a set of concepts between two
// periods.
type Comparison struct {
	Base     domain.Period   `json:"base"`
	Target   domain.Period   `json:"target"`
	Concepts []string        `json:"concepts"`
	Rows     []ComparisonRow `json:"rows"`
	Total    ComparisonRow   `json:"total"`
}

// Aggregate sums the records of period whose concept matches one of
// concepts, by entity. Concepts match regardless of accents and case, so
// "Inversion en Fondos Mutuos" and "Inversión en Fondos Mutuos" are one.
func Aggregate(records []domain.Record, period domain.Period, concepts ...string) map[string]Amounts {
	wanted := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		wanted[dataprocessing.Fold(c)] = struct{}{}
	}

	out := make(map[string]Amounts)
	for _, r := range records {
		if r.Period() != period {
			continue
		}
		if _, ok := wanted[dataprocessing.Fold(r.Concept)]; !ok {
			continue
		}
		out[r.Entity] = out[r.Entity].add(Amounts{
			Native:    decimal.NewFromFloat(r.ValueNative),
			Converted: decimal.NewFromFloat(r.ValueConverted),
		})
	}
	return out
}

// Compare builds the comparison of concepts between base and target.
// Entities present in only one period compare against zero.
func Compare(records []domain.Record, base, target domain.Period, concepts ...string) (*Comparison, error) {
	if len(concepts) == 0 {
		return nil, apperrors.NewAppValidationError("at least one concept is required", nil)
	}
	baseTotals := Aggregate(records, base, concepts...)
	if len(baseTotals) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s records for %s", strings.Join(concepts, ", "), base))
	}
	targetTotals := Aggregate(records, target, concepts...)
	if len(targetTotals) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s records for %s", strings.Join(concepts, ", "), target))
	}

	entities := make(map[string]struct{})
	for e := range baseTotals {
		entities[e] = struct{}{}
	}
	for e := range targetTotals {
		entities[e] = struct{}{}
	}
	names := make([]string, 0, len(entities))
	for e := range entities {
		names = append(names, e)
	}
	sort.Strings(names)

	c := &Comparison{Base: base, Target: target, Concepts: concepts, Total: ComparisonRow{Entity: "TOTAL"}}
	for _, e := range names {
		row := ComparisonRow{Entity: e, Base: baseTotals[e], Target: targetTotals[e]}
		c.Rows = append(c.Rows, row)
		c.Total.Base = c.Total.Base.add(row.Base)
		c.Total.Target = c.Total.Target.add(row.Target)
	}
	return c, nil
}

// ComparisonHeaders names the CSV columns of a comparison.
func (c *Comparison) ComparisonHeaders() []string {
	b, t := c.Base.String(), c.Target.String()
	return []string{
		"Afore",
		b + " valueMXN", t + " valueMXN", "growthMXN", "growthMXN %",
		b + " valueUSD", t + " valueUSD", "growthUSD", "growthUSD %",
	}
}

// CSVRows renders the comparison rows, total last.
func (c *Comparison) CSVRows() [][]string {
	rows := make([][]string, 0, len(c.Rows)+1)
	for _, r := range append(append([]ComparisonRow(nil), c.Rows...), c.Total) {
		rows = append(rows, []string{
			r.Entity,
			formatDecimal(r.Base.Native), formatDecimal(r.Target.Native),
			formatDecimal(r.GrowthNative()), r.PercentNative().StringFixed(1),
			formatDecimal(r.Base.Converted), formatDecimal(r.Target.Converted),
			formatDecimal(r.GrowthConverted()), r.PercentConverted().StringFixed(1),
		})
	}
	return rows
}

// WriteMarkdown renders the comparison as a markdown table under a title.
func (c *Comparison) WriteMarkdown(w io.Writer, title string) error {
	var b strings.Builder
	base, target := c.Base.String(), c.Target.String()

	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "| Afore | %s MXN | %s MXN | Growth MXN | Growth %% | %s USD | %s USD | Growth USD | Growth %% |\n",
		base, target, base, target)
	b.WriteString("|-------|------:|------:|------:|------:|------:|------:|------:|------:|\n")

	line := func(r ComparisonRow, bold bool) {
		cells := []string{
			r.Entity,
			formatAmount(r.Base.Native), formatAmount(r.Target.Native),
			formatAmount(r.GrowthNative()), formatPercent(r.PercentNative()),
			"$" + formatAmount(r.Base.Converted), "$" + formatAmount(r.Target.Converted),
			"$" + formatAmount(r.GrowthConverted()), formatPercent(r.PercentConverted()),
		}
		if bold {
			for i, cell := range cells {
				cells[i] = "**" + cell + "**"
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	for _, r := range c.Rows {
		line(r, false)
	}
	line(c.Total, true)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteComparison writes the comparison as CSV to filePath.
func (w *CSVWriter) WriteComparison(filePath string, c *Comparison) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   c.ComparisonHeaders(),
		Records:   c.CSVRows(),
		BOMPrefix: true,
	})
}
