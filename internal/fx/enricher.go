package fx

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// Enricher attaches one end-of-period conversion rate to every record of a
// period.
type Enricher struct {
	logger *slog.Logger
}

// NewEnricher creates a new enricher
func NewEnricher(logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{logger: logger.With(slog.String("component", "fx_enricher"))}
}

// SelectRate returns the latest observation dated inside target. Points
// with a non-positive rate are ignored.
func SelectRate(series []domain.RateObservation, target domain.Period) (domain.RateObservation, error) {
	var (
		best  domain.RateObservation
		found bool
	)
	for _, obs := range series {
		if obs.Rate <= 0 || !target.Contains(obs.Date) {
			continue
		}
		if !found || obs.Date.After(best.Date) {
			best = obs
			found = true
		}
	}
	if !found {
		return domain.RateObservation{}, apperrors.NewFXUnavailableError(target.String())
	}
	return best, nil
}

// Convert divides native by rate with decimal arithmetic.
func Convert(native, rate float64) float64 {
	if rate == 0 {
		return 0
	}
	return decimal.NewFromFloat(native).Div(decimal.NewFromFloat(rate)).InexactFloat64()
}

// Enrich returns copies of records carrying the end-of-period rate of
// target and the converted value. Every record must belong to target.
// The input slice is not modified.
func (e *Enricher) Enrich(records []domain.Record, target domain.Period, series []domain.RateObservation) ([]domain.Record, error) {
	for _, r := range records {
		if r.Period() != target {
			return nil, apperrors.NewAppValidationError(
				fmt.Sprintf("record for %s in %s enrichment", r.Period(), target),
				apperrors.ErrMixedPeriods).
				WithContext("stage", "enrich").
				WithContext("period", target.String())
		}
	}

	obs, err := SelectRate(series, target)
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			appErr.WithContext("stage", "enrich").WithContext("observations", len(series))
		}
		return nil, err
	}

	out := make([]domain.Record, len(records))
	for i, r := range records {
		r.ConversionRate = obs.Rate
		r.ValueConverted = Convert(r.ValueNative, obs.Rate)
		out[i] = r
	}

	e.logger.Info("records enriched",
		slog.String("period", target.String()),
		slog.String("rate_date", obs.Date.Format("2006-01-02")),
		slog.Float64("rate", obs.Rate),
		slog.Int("records", len(out)))

	return out, nil
}

// Totals sums native and converted values with decimal arithmetic.
func Totals(records []domain.Record) (native, converted decimal.Decimal) {
	native, converted = decimal.Zero, decimal.Zero
	for _, r := range records {
		native = native.Add(decimal.NewFromFloat(r.ValueNative))
		converted = converted.Add(decimal.NewFromFloat(r.ValueConverted))
	}
	return native, converted
}
