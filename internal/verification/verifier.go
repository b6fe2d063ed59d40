package verification

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/ledger"
	"sieforeagent/pkg/contracts/domain"
)

// Verifier compares a period of the store against the period before it.
type Verifier struct {
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

// NewVerifier creates a verifier that warns when total assets move by more
// than threshold (a fraction, 0.10 is ten percent).
func NewVerifier(threshold float64, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = config.DefaultDriftThreshold
	}
	return &Verifier{
		threshold: threshold,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "verifier")),
	}
}

// Verify checks target against the latest earlier period in records.
func (v *Verifier) Verify(records []domain.Record, target domain.Period) (*domain.ConsistencyReport, error) {
	current := ledger.Filter(records, target)
	if len(current) == 0 {
		return nil, apperrors.NewVerificationError(fmt.Sprintf("no records for %s", target), nil).
			WithContext("stage", "verify").
			WithContext("period", target.String())
	}
	priorPeriod, ok := ledger.PriorPeriod(records, target)
	if !ok {
		return nil, apperrors.NewVerificationError(fmt.Sprintf("nothing to compare %s with", target), apperrors.ErrNoPriorPeriod).
			WithContext("stage", "verify").
			WithContext("period", target.String())
	}
	prior := ledger.Filter(records, priorPeriod)

	report := &domain.ConsistencyReport{
		TargetPeriod: target,
		PriorPeriod:  priorPeriod,
		Status:       domain.CheckStatusPass,
		GeneratedAt:  v.now().UTC(),
	}
	report.Checks = []domain.CheckResult{
		recordCount(prior, current),
		setIntegrity(domain.CheckEntityIntegrity, "entities", prior, current, func(r domain.Record) string { return r.Entity }),
		setIntegrity(domain.CheckSubfundIntegrity, "sub-funds", prior, current, func(r domain.Record) string { return r.Subfund }),
		setIntegrity(domain.CheckConceptIntegrity, "concepts", prior, current, func(r domain.Record) string { return r.Concept }),
		v.aggregateMagnitude(prior, current),
	}
	for _, c := range report.Checks {
		report.Status = report.Status.Worse(c.Status)
	}
	report.Breakdown = breakdown(prior, current)

	attrs := []any{
		slog.String("target", target.String()),
		slog.String("prior", priorPeriod.String()),
		slog.String("status", string(report.Status)),
	}
	if report.Status == domain.CheckStatusPass {
		v.logger.Info("consistency verified", attrs...)
	} else {
		v.logger.Warn("consistency checks raised findings", attrs...)
	}
	return report, nil
}

func recordCount(prior, current []domain.Record) domain.CheckResult {
	c := domain.CheckResult{
		Name:   domain.CheckRecordCount,
		Status: domain.CheckStatusPass,
		Fatal:  true,
		Values: map[string]float64{
			"prior":  float64(len(prior)),
			"target": float64(len(current)),
		},
		Message: fmt.Sprintf("record counts match: %d", len(current)),
	}
	if len(prior) != len(current) {
		c.Status = domain.CheckStatusFail
		c.Message = fmt.Sprintf("record count mismatch: %d now vs %d before", len(current), len(prior))
	}
	return c
}

func setIntegrity(name, noun string, prior, current []domain.Record, key func(domain.Record) string) domain.CheckResult {
	before := distinct(prior, key)
	after := distinct(current, key)

	c := domain.CheckResult{
		Name:    name,
		Status:  domain.CheckStatusPass,
		Missing: difference(before, after),
		Added:   difference(after, before),
		Message: fmt.Sprintf("%s match", noun),
	}
	if len(c.Missing) > 0 || len(c.Added) > 0 {
		c.Status = domain.CheckStatusWarn
		c.Message = fmt.Sprintf("%s changed: %d missing, %d new", noun, len(c.Missing), len(c.Added))
	}
	return c
}

func (v *Verifier) aggregateMagnitude(prior, current []domain.Record) domain.CheckResult {
	before := totalAssets(prior, "")
	after := totalAssets(current, "")

	c := domain.CheckResult{
		Name:   domain.CheckAggregateMagnitude,
		Status: domain.CheckStatusPass,
		Values: map[string]float64{
			"prior":  before.InexactFloat64(),
			"target": after.InexactFloat64(),
		},
	}

	if before.IsZero() {
		if !after.IsZero() {
			c.Status = domain.CheckStatusWarn
			c.Message = "prior total assets are zero"
		} else {
			c.Message = "total assets are zero in both periods"
		}
		return c
	}

	change := after.Sub(before).Div(before).InexactFloat64()
	c.Values["change_pct"] = change * 100
	c.Message = fmt.Sprintf("total assets changed %+.2f%%", change*100)
	if math.Abs(change) > v.threshold {
		c.Status = domain.CheckStatusWarn
		c.Message = fmt.Sprintf("total assets changed %+.2f%%, above %.0f%%", change*100, v.threshold*100)
	}
	return c
}

func breakdown(prior, current []domain.Record) []domain.EntityChange {
	entities := distinct(append(append([]domain.Record(nil), prior...), current...), func(r domain.Record) string { return r.Entity })
	names := make([]string, 0, len(entities))
	for e := range entities {
		names = append(names, e)
	}
	sort.Strings(names)

	out := make([]domain.EntityChange, 0, len(names))
	for _, e := range names {
		before := totalAssets(prior, e)
		after := totalAssets(current, e)
		ec := domain.EntityChange{
			Entity: e,
			Prior:  before.InexactFloat64(),
			Target: after.InexactFloat64(),
		}
		if before.IsPositive() {
			ec.ChangePct = after.Sub(before).Div(before).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, ec)
	}
	return out
}

// totalAssets sums converted Total de Activo values, for one entity when
// entity is set.
func totalAssets(records []domain.Record, entity string) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		if r.Concept != domain.ConceptTotalAssets {
			continue
		}
		if entity != "" && r.Entity != entity {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(r.ValueConverted))
	}
	return sum
}

func distinct(records []domain.Record, key func(domain.Record) string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range records {
		out[key(r)] = struct{}{}
	}
	return out
}

// difference returns the sorted members of a missing from b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// WriteReport persists report as indented JSON, replacing path atomically.
func WriteReport(path string, report *domain.ConsistencyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode consistency report", err)
	}
	if err := ledger.WriteFileAtomic(path, append(data, '\n'), 0644); err != nil {
		return apperrors.NewStorageError("failed to write consistency report", err).WithContext("file", path)
	}
	return nil
}
