// Command migrate-units rescales stored values that were integrated with
// the wrong unit scale. The store is backed up before it is rewritten.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sieforeagent/internal/app"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/ledger"
	"sieforeagent/pkg/contracts/domain"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	factor := flag.Float64("factor", 0.001, "multiplier applied to native and converted values")
	tag := flag.String("tag", string(domain.DefaultUnitScale), "unit scale written to migrated records")
	periods := flag.String("periods", "", "comma-separated YYYY-MM periods to migrate (default every period)")
	reference := flag.String("reference", "", "period whose Total de Activo sum is checked (required)")
	guardAbove := flag.Float64("guard-above", 0, "abort unless the reference sum exceeds this value")
	guardBelow := flag.Float64("guard-below", 0, "abort unless the reference sum is below this value")
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "migrate-units", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m, err := buildMigration(*factor, *tag, *periods, *reference, *guardAbove, *guardBelow)
	if err != nil {
		a.Exit(ctx, err)
	}

	var report *ledger.MigrationReport
	if *dryRun {
		records, err := a.Store.Load(ctx)
		if err != nil {
			a.Exit(ctx, err)
		}
		_, r, err := m.Apply(records)
		if err != nil {
			a.Exit(ctx, err)
		}
		report = &r
	} else {
		report, err = ledger.MigrateUnits(ctx, a.Store, m, a.Logger)
		if err != nil {
			a.Exit(ctx, err)
		}
	}

	app.PrintJSON(os.Stdout, report)
	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}

func buildMigration(factor float64, tag, periods, reference string, above, below float64) (ledger.UnitMigration, error) {
	m := ledger.UnitMigration{
		Factor:     factor,
		Tag:        domain.UnitScale(tag),
		GuardAbove: above,
		GuardBelow: below,
	}
	if factor <= 0 {
		return m, apperrors.NewAppValidationError("-factor must be positive", nil)
	}
	if !m.Tag.Known() {
		return m, apperrors.NewAppValidationError("unknown -tag "+tag, nil)
	}

	ref, err := domain.ParsePeriod(reference)
	if err != nil {
		return m, apperrors.NewAppValidationError("invalid -reference", err)
	}
	m.Reference = ref

	for _, s := range strings.Split(periods, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		p, err := domain.ParsePeriod(s)
		if err != nil {
			return m, apperrors.NewAppValidationError("invalid -periods entry", err)
		}
		m.Periods = append(m.Periods, p)
	}
	return m, nil
}
