// Command verifier re-runs the consistency checks for a stored period and
// rewrites the consistency report.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sieforeagent/internal/app"
	"sieforeagent/internal/operations"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	period := flag.String("period", "", "period YYYY-MM to verify (defaults to the run metadata)")
	reportFile := flag.String("report", "", "report path (defaults to the configured report file)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "verifier", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	target, err := a.TargetPeriod(*period)
	if err != nil {
		a.Exit(ctx, err)
	}
	out := *reportFile
	if out == "" {
		out = a.Paths.ReportFile
	}

	_, state, err := a.Run(ctx, target, &operations.VerifyStep{
		Store:      a.Store,
		Verifier:   a.Verifier,
		ReportFile: out,
		Metrics:    a.Telemetry.Metrics,
	})
	if state != nil && state.Report != nil {
		app.PrintJSON(os.Stdout, state.Report)
	}
	if err != nil {
		a.Exit(ctx, err)
	}
	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}
