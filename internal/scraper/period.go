package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"sieforeagent/internal/dataprocessing"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// availableRe matches the coverage banner, "Periodo Disponible: Ene 19-Sep 25".
var availableRe = regexp.MustCompile(`(?i)periodo disponible[^\n]*?(\pL{3})\s+(\d{2})\s*-\s*(\pL{3})\s+(\d{2})`)

// ParseAvailablePeriod returns the last period of the coverage banner in
// the text of the CONSAR statistics page.
func ParseAvailablePeriod(text string) (domain.Period, error) {
	m := availableRe.FindStringSubmatch(text)
	if m == nil {
		return domain.Period{}, apperrors.NewParsingError("coverage banner not found on page", apperrors.ErrPeriodNotFound)
	}
	month, ok := domain.MonthAbbrevES[dataprocessing.Fold(m[3])]
	if !ok {
		return domain.Period{}, apperrors.NewParsingError("unknown month "+strings.TrimSpace(m[3])+" in coverage banner", apperrors.ErrPeriodNotFound)
	}
	year, _ := strconv.Atoi(m[4])
	mm, _ := strconv.Atoi(month)
	return domain.NewPeriod(2000+year, mm), nil
}
