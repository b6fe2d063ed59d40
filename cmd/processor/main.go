// Command processor extracts the target period from the downloaded
// exports, converts it with the end-of-month rate and submits the result
// for approval. Nothing is written to the historical store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sieforeagent/internal/app"
	"sieforeagent/internal/exporter"
	"sieforeagent/internal/fx"
	"sieforeagent/internal/operations"
	"sieforeagent/internal/validation"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	period := flag.String("period", "", "target period YYYY-MM (defaults to the run metadata)")
	inDir := flag.String("in", "", "directory holding the .xlsx exports (defaults to the downloads directory)")
	allowPartial := flag.Bool("allow-partial", false, "skip exports that fail to parse instead of aborting")
	exportCSV := flag.Bool("csv", false, "also write the enriched period as CSV to the reports directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "processor", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	target, err := a.TargetPeriod(*period)
	if err != nil {
		a.Exit(ctx, err)
	}
	dir := *inDir
	if dir == "" {
		dir = a.Paths.DownloadsDir
	}
	metrics := a.Telemetry.Metrics
	files := validation.NewFileValidator(a.Logger)

	steps := []operations.Step{
		operations.StepFunc{
			StepID:   "validate",
			StepName: "Validate downloads",
			Fn: func(ctx context.Context, state *operations.RunState) error {
				n, err := files.ValidateDownloads(dir)
				if err != nil {
					return err
				}
				if n == 0 {
					return operations.NewValidationError("validate", "no exports in "+dir)
				}
				state.Note("validate", fmt.Sprintf("%d exports", n))
				return nil
			},
		},
		&operations.ExtractStep{
			Extractor:    a.Extractor(),
			Dir:          dir,
			AllowPartial: *allowPartial || a.Config.Pipeline.AllowPartial,
			OutFile:      a.Paths.ExtractFile,
			Metrics:      metrics,
		},
		&operations.EnrichStep{
			Source:   a.RateSource(),
			Enricher: fx.NewEnricher(a.Logger),
			OutFile:  a.Paths.EnrichedFile,
			Metrics:  metrics,
		},
		&operations.SubmitStep{
			Approvals:    a.Approvals,
			EnrichedFile: a.Paths.EnrichedFile,
		},
	}
	if *exportCSV {
		w := exporter.NewCSVWriter(a.Paths, a.Logger)
		steps = append(steps, operations.StepFunc{
			StepID:   "export",
			StepName: "Export period as CSV",
			Fn: func(ctx context.Context, state *operations.RunState) error {
				path, err := w.ExportPeriod(state.Records, state.Target, fmt.Sprintf("consar_%s_enriched.csv", state.Target))
				if err != nil {
					return err
				}
				state.Note("export", path)
				return nil
			},
		})
	}

	report, state, err := a.Run(ctx, target, steps...)
	if report != nil {
		app.PrintJSON(os.Stdout, report)
	}
	if err != nil {
		a.Exit(ctx, err)
	}

	a.Logger.InfoContext(ctx, "awaiting approval",
		slog.String("period", target.String()),
		slog.String("approval_id", state.Approval.ID),
		slog.String("review_file", a.Paths.ReviewFile))
	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}
