package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"sieforeagent/pkg/contracts/domain"
)

// englishMonths covers headers rendered from real date cells, which excelize
// formats with English abbreviations.
var englishMonths = map[string]string{
	"jan": "01", "apr": "04", "aug": "08", "dec": "12",
}

// notAvailable are the tokens CONSAR uses for missing values.
var notAvailable = map[string]struct{}{
	"N/E": {}, "N/A": {}, "-": {}, "": {}, "N.D.": {}, "ND": {},
}

// ParsePeriodLabel parses a period column label such as "ene-24",
// "ene-2025", "Enero-2024" or "oct 24" into a Period.
func ParsePeriodLabel(label string) (domain.Period, bool) {
	text := Fold(label)
	sep := strings.IndexAny(text, "-/ ")
	if sep <= 0 || sep == len(text)-1 {
		return domain.Period{}, false
	}
	monthPart := strings.TrimSpace(text[:sep])
	yearPart := strings.TrimSpace(text[sep+1:])

	if len(monthPart) < 3 {
		return domain.Period{}, false
	}
	abbr := monthPart[:3]
	month, ok := domain.MonthAbbrevES[abbr]
	if !ok {
		if month, ok = englishMonths[abbr]; !ok {
			return domain.Period{}, false
		}
	}

	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 0 {
		return domain.Period{}, false
	}
	switch len(yearPart) {
	case 2:
		year += 2000
	case 4:
	default:
		return domain.Period{}, false
	}

	m, _ := strconv.Atoi(month)
	return domain.NewPeriod(year, m), true
}

// CleanValue converts a cell to a number. Thousands separators are
// stripped, not-available tokens become zero, "(1,234)" is negative, and
// anything unparseable is zero. It never fails.
func CleanValue(cell string) float64 {
	v := strings.TrimSpace(cell)
	if _, ok := notAvailable[strings.ToUpper(v)]; ok {
		return 0
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, " ", "")

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if negative {
		return -f
	}
	return f
}
