package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies a calendar month of disclosures. Year and Month are kept
// as the zero-padded strings the historical store uses ("2024", "10").
type Period struct {
	Year  string `json:"year" validate:"required,period_year"`
	Month string `json:"month" validate:"required,period_month"`
}

// MonthAbbrevES maps the CONSAR Spanish month abbreviations to zero-padded months.
var MonthAbbrevES = map[string]string{
	"ene": "01", "feb": "02", "mar": "03", "abr": "04",
	"may": "05", "jun": "06", "jul": "07", "ago": "08",
	"sep": "09", "oct": "10", "nov": "11", "dic": "12",
}

// MonthNameEN maps zero-padded months to English names, used in release titles and reports.
var MonthNameEN = map[string]string{
	"01": "January", "02": "February", "03": "March", "04": "April",
	"05": "May", "06": "June", "07": "July", "08": "August",
	"09": "September", "10": "October", "11": "November", "12": "December",
}

// NewPeriod builds a Period from numeric parts, padding the month.
func NewPeriod(year, month int) Period {
	return Period{Year: fmt.Sprintf("%04d", year), Month: fmt.Sprintf("%02d", month)}
}

// PeriodOf returns the period a date falls in.
func PeriodOf(t time.Time) Period {
	return NewPeriod(t.Year(), int(t.Month()))
}

// ParsePeriod accepts "YYYY-MM" or "YYYY/MM".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return Period{}, fmt.Errorf("invalid period year %q", parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid period month %q", parts[1])
	}
	return NewPeriod(year, month), nil
}

// Valid reports whether the period holds a 4-digit year and a month in 01..12.
func (p Period) Valid() bool {
	if len(p.Year) != 4 || len(p.Month) != 2 {
		return false
	}
	if _, err := strconv.Atoi(p.Year); err != nil {
		return false
	}
	m, err := strconv.Atoi(p.Month)
	return err == nil && m >= 1 && m <= 12
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == "" && p.Month == ""
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return p.Year + "-" + p.Month
}

// Label renders the period the way CONSAR exports label columns ("oct-24").
func (p Period) Label() string {
	for abbr, m := range MonthAbbrevES {
		if m == p.Month && len(p.Year) == 4 {
			return abbr + "-" + p.Year[2:]
		}
	}
	return p.String()
}

// Tag returns the release tag for the period (v2024.10).
func (p Period) Tag() string {
	return "v" + p.Year + "." + p.Month
}

// MonthName returns the English month name, or the raw month when unknown.
func (p Period) MonthName() string {
	if name, ok := MonthNameEN[p.Month]; ok {
		return name
	}
	return p.Month
}

// Compare orders periods by year then month, numerically. Malformed parts
// fall back to string comparison so ordering stays total.
func (p Period) Compare(o Period) int {
	if c := compareNumeric(p.Year, o.Year); c != 0 {
		return c
	}
	return compareNumeric(p.Month, o.Month)
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	return p.Compare(o) < 0
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	y, _ := strconv.Atoi(p.Year)
	m, _ := strconv.Atoi(p.Month)
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls within the calendar month.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

func compareNumeric(a, b string) int {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}
