// Command report writes the historical store out for people: one period's
// records as CSV, or a per-AFORE comparison of two periods as CSV and
// markdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sieforeagent/internal/app"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/exporter"
	"sieforeagent/pkg/contracts/domain"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	period := flag.String("period", "", "export the records of this period YYYY-MM")
	base := flag.String("base", "", "comparison base period YYYY-MM")
	target := flag.String("target", "", "comparison target period YYYY-MM")
	concepts := flag.String("concepts", domain.ConceptMutualFunds, "comma-separated concepts to aggregate in the comparison")
	out := flag.String("out", "", "output file name, relative names land in the reports directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "report", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	records, err := a.Store.Load(ctx)
	if err != nil {
		a.Exit(ctx, err)
	}
	w := exporter.NewCSVWriter(a.Paths, a.Logger)

	switch {
	case *period != "":
		p, err := domain.ParsePeriod(*period)
		if err != nil {
			a.Exit(ctx, apperrors.NewAppValidationError("invalid -period", err))
		}
		name := *out
		if name == "" {
			name = fmt.Sprintf("consar_%s.csv", p)
		}
		path, err := w.ExportPeriod(records, p, name)
		if err != nil {
			a.Exit(ctx, err)
		}
		fmt.Println(path)

	case *base != "" && *target != "":
		b, err := domain.ParsePeriod(*base)
		if err != nil {
			a.Exit(ctx, apperrors.NewAppValidationError("invalid -base", err))
		}
		t, err := domain.ParsePeriod(*target)
		if err != nil {
			a.Exit(ctx, apperrors.NewAppValidationError("invalid -target", err))
		}
		c, err := exporter.Compare(records, b, t, splitList(*concepts)...)
		if err != nil {
			a.Exit(ctx, err)
		}
		name := *out
		if name == "" {
			name = fmt.Sprintf("comparison_%s_%s.csv", b, t)
		}
		path, err := w.WriteComparison(name, c)
		if err != nil {
			a.Exit(ctx, err)
		}
		title := fmt.Sprintf("%s: %s %s vs %s %s", strings.Join(c.Concepts, " + "),
			b.MonthName(), b.Year, t.MonthName(), t.Year)
		if err := c.WriteMarkdown(os.Stdout, title); err != nil {
			a.Exit(ctx, err)
		}
		fmt.Println()
		fmt.Println(path)

	default:
		a.Exit(ctx, apperrors.NewAppValidationError("either -period or both -base and -target are required", nil))
	}

	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
