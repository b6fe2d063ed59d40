// Command ledger-api serves the historical store read-only over HTTP until
// interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sieforeagent/internal/app"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to SIEFORE_CONFIG_FILE or ./siefore.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "ledger-api", app.Options{ConfigFile: *configFile})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := a.Serve(ctx); err != nil {
		a.Exit(context.Background(), err)
	}
	if err := a.Close(context.Background()); err != nil {
		slog.Warn("Close failed", slog.String("error", err.Error()))
	}
}
