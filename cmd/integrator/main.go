// Command integrator merges the approved period into the historical store,
// verifies it against the previous period and optionally publishes a
// release.
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
	"sieforeagent/internal/release"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	period := flag.String("period", "", "target period YYYY-MM (defaults to the run metadata)")
	publish := flag.Bool("release", false, "publish a release after a successful verification")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "integrator", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	target, err := a.TargetPeriod(*period)
	if err != nil {
		a.Exit(ctx, err)
	}
	metrics := a.Telemetry.Metrics

	steps := []operations.Step{
		&operations.IntegrateStep{Approvals: a.Approvals, Store: a.Store, Metrics: metrics},
		&operations.VerifyStep{Store: a.Store, Verifier: a.Verifier, ReportFile: a.Paths.ReportFile, Metrics: metrics},
	}
	if *publish {
		client, err := release.NewClient(a.Config.Release, a.Policy("github releases"), a.Logger)
		if err != nil {
			a.Exit(ctx, err)
		}
		publisher := &release.Publisher{
			Approvals: a.Approvals,
			Creator:   client,
			StoreFile: a.Paths.StoreFile,
			Logger:    a.Logger,
		}
		steps = append(steps, operations.StepFunc{
			StepID:   "release",
			StepName: "Publish release",
			Fn: func(ctx context.Context, state *operations.RunState) error {
				r, err := publisher.Publish(ctx)
				if err != nil {
					return err
				}
				state.Note("release", r.HTMLURL)
				return nil
			},
		})
	}

	report, _, err := a.Run(ctx, target, steps...)
	if report != nil {
		app.PrintJSON(os.Stdout, report)
	}
	if err != nil {
		a.Exit(ctx, err)
	}
	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}
