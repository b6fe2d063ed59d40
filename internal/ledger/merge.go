package ledger

import (
	"fmt"
	"sort"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// MergeStats describes what a merge did to the store.
type MergeStats struct {
	Period   domain.Period `json:"period"`
	Kept     int           `json:"kept"`
	Replaced int           `json:"replaced"`
	Added    int           `json:"added"`
	Total    int           `json:"total"`
}

// SinglePeriod returns the period shared by every record. It fails when
// records is empty or spans more than one period.
func SinglePeriod(records []domain.Record) (domain.Period, error) {
	if len(records) == 0 {
		return domain.Period{}, apperrors.NewAppValidationError("no records to integrate", nil)
	}
	period := records[0].Period()
	for i, r := range records[1:] {
		if r.Period() != period {
			return domain.Period{}, apperrors.NewAppValidationError(
				fmt.Sprintf("record %d is for %s, expected %s", i+1, r.Period(), period),
				apperrors.ErrMixedPeriods).
				WithContext("period", period.String())
		}
	}
	return period, nil
}

// Merge replaces every stored record of the incoming period with the
// incoming records. Stored records of other periods keep their order and
// the incoming records are appended. Merging the same input twice yields
// the same result.
func Merge(store, incoming []domain.Record) ([]domain.Record, MergeStats, error) {
	period, err := SinglePeriod(incoming)
	if err != nil {
		return nil, MergeStats{}, err
	}

	merged := make([]domain.Record, 0, len(store)+len(incoming))
	stats := MergeStats{Period: period}
	for _, r := range store {
		if r.Period() == period {
			stats.Replaced++
			continue
		}
		merged = append(merged, r)
	}
	stats.Kept = len(merged)
	merged = append(merged, incoming...)
	stats.Added = len(incoming)
	stats.Total = len(merged)
	return merged, stats, nil
}

// Periods returns the distinct periods of records in ascending order.
func Periods(records []domain.Record) []domain.Period {
	seen := make(map[domain.Period]struct{})
	var out []domain.Period
	for _, r := range records {
		p := r.Period()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Filter returns the records of period, in store order.
func Filter(records []domain.Record, period domain.Period) []domain.Record {
	var out []domain.Record
	for _, r := range records {
		if r.Period() == period {
			out = append(out, r)
		}
	}
	return out
}

// PriorPeriod returns the latest period strictly before target.
func PriorPeriod(records []domain.Record, target domain.Period) (domain.Period, bool) {
	var (
		best  domain.Period
		found bool
	)
	for _, r := range records {
		p := r.Period()
		if !p.Before(target) {
			continue
		}
		if !found || best.Before(p) {
			best = p
			found = true
		}
	}
	return best, found
}

// DuplicateKeys returns the keys that occur more than once.
func DuplicateKeys(records []domain.Record) []domain.RecordKey {
	seen := make(map[domain.RecordKey]int, len(records))
	var dups []domain.RecordKey
	for _, r := range records {
		k := r.Key()
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}
