package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	handlers "sieforeagent/internal/transport/http"
)

// Handler returns the ledger API router.
func (a *Application) Handler() http.Handler {
	return handlers.NewRouter(handlers.RouterDeps{
		Store:     a.Store,
		Verifier:  a.Verifier,
		Approvals: a.Approvals,
		Telemetry: a.Telemetry,
		Logger:    a.Logger,
		Timeout:   a.Config.Server.WriteTimeout,
	})
}

// Serve listens on the configured port until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.Config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves the ledger API on ln and shuts down gracefully when
// ctx is cancelled.
func (a *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}

	if err := a.Telemetry.RegisterRuntimeCollectors(); err != nil {
		a.Logger.WarnContext(ctx, "runtime collectors not registered", slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "ledger API listening", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		a.Logger.InfoContext(shutdownCtx, "shutting down ledger API")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
