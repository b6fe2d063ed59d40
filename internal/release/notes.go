package release

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sieforeagent/internal/approval"
	"sieforeagent/pkg/contracts/domain"
)

var printer = message.NewPrinter(language.English)

// Title is the release title of a period, "September 2025 - Siefore Data Update".
func Title(p domain.Period) string {
	return fmt.Sprintf("%s %s - Siefore Data Update", p.MonthName(), p.Year)
}

// NotesInput carries what the release notes report.
type NotesInput struct {
	Approval  domain.Approval
	Records   []domain.Record
	StoreSize int64
}

// Notes renders the markdown body of a release.
func Notes(in NotesInput) string {
	p := in.Approval.Period()
	month := p.MonthName()
	s := approval.Summarize(in.Records)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s - CONSAR Siefore Data Update\n\n", month, p.Year)
	b.WriteString("Updated pension fund (AFORE) holdings data from CONSAR with FX enrichment.\n\n")

	b.WriteString("## Data Summary\n\n")
	fmt.Fprintf(&b, "- **Period:** %s %s\n", month, p.Year)
	b.WriteString(printer.Sprintf("- **Records Added:** %d\n", in.Approval.NewRecordsAdded))
	b.WriteString(printer.Sprintf("- **Total Database Records:** %d\n", in.Approval.TotalRecordsInDB))
	fmt.Fprintf(&b, "- **Database Size:** %.2f MB\n\n", float64(in.StoreSize)/(1024*1024))

	b.WriteString("## Financial Summary\n\n")
	b.WriteString(printer.Sprintf("- **Total Assets (MXN):** $%.0f\n", s.TotalNative))
	b.WriteString(printer.Sprintf("- **Total Assets (USD):** $%.0f\n", s.TotalConverted))
	fmt.Fprintf(&b, "- **FX Rate (EOM):** %.4f MXN/USD\n\n", s.ConversionRate)

	b.WriteString("## Coverage\n\n")
	fmt.Fprintf(&b, "- **AFOREs (%d):** %s\n", len(s.Entities), strings.Join(s.Entities, ", "))
	fmt.Fprintf(&b, "- **SIEFOREs (%d):** %s\n\n", len(s.Subfunds), strings.Join(s.Subfunds, ", "))

	b.WriteString("## Concepts Tracked\n\n")
	for _, c := range s.Concepts {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}
