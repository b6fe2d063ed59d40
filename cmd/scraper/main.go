// Command scraper checks the CONSAR portal for a newly published period
// and, when it has not been released yet, writes the run metadata that the
// processor reads.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sieforeagent/internal/app"
	"sieforeagent/internal/release"
	"sieforeagent/internal/scraper"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	force := flag.Bool("force", false, "write run metadata even when the period is already released")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "scraper", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	releases, err := release.NewClient(a.Config.Release, a.Policy("github releases"), a.Logger)
	if err != nil {
		a.Exit(ctx, err)
	}
	checker := &scraper.Checker{
		Source:   scraper.NewChromeProbe(a.Config.Scraper, a.Policy("consar portal"), a.Logger),
		Releases: releases,
		Logger:   a.Logger,
	}

	decision, err := checker.Check(ctx)
	if err != nil {
		a.Exit(ctx, err)
	}

	if !decision.UpToDate || *force {
		if err := scraper.WriteMetadata(a.Paths.MetadataFile, decision.Available, time.Now()); err != nil {
			a.Exit(ctx, err)
		}
		a.Logger.InfoContext(ctx, "new period detected",
			slog.String("period", decision.Available.String()),
			slog.String("metadata_file", a.Paths.MetadataFile))
	} else {
		a.Logger.InfoContext(ctx, "already up to date", slog.String("period", decision.Available.String()))
	}

	if err := app.PrintJSON(os.Stdout, decision); err != nil {
		a.Exit(ctx, err)
	}
	if err := a.Close(ctx); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}
