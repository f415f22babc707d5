// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/scheduler"
	"github.com/starford/ansuz/internal/sse"
)

// Run starts the long-running server: HTTP API, vault watcher and, when
// enabled, automatic publication.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := newRuntime(app, false,
		publish.WithNotifier(publish.MultiNotifier{publish.LogNotifier{}, broker}),
		publish.WithRunHook(broker.RunFinished),
	)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	apiRouter := api.NewRouter(rt.publisher, rt.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Unauthenticated endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.db.ListNotes(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.HTTPHandler(rt.registry))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Publish.Automatic {
		sched, err := scheduler.New(rt.publisher, logger)
		if err != nil {
			return err
		}
		if _, err := sched.Every(gCtx, cfg.Publish.Interval); err != nil {
			return err
		}
		sched.Start()
		logger.Info("Automatic publication enabled", slog.Duration("interval", cfg.Publish.Interval))
		g.Go(func() error {
			<-gCtx.Done()
			return sched.Stop()
		})
	}

	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, cfg.Vault.Path, logger, broker.IndexChanged)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the watcher and the scheduler.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// Publish runs the publishing pipeline once and reports the outcome.
// Informational outcomes (nothing to publish, platform disabled) are not
// errors.
func Publish(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}

	rt, err := newRuntime(app, false,
		publish.WithNotifier(publish.LogNotifier{}),
	)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.publisher.Run(ctx, publish.RunRequest{Trigger: publish.TriggerCLI, DryRun: app.dryRun})
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNoCandidates), errors.Is(err, apperr.ErrPlatformDisabled):
		err = nil
	default:
		return fmt.Errorf("publish: %w", err)
	}
	if rec.Failed > 0 {
		return fmt.Errorf("publish: %d of %d note(s) failed", rec.Failed, rec.Candidates)
	}
	return err
}

// ServeMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOut: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}

	rt, err := newRuntime(app, true,
		publish.WithNotifier(publish.LogNotifier{}),
	)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("Serving MCP on stdio")
	return mcpserver.New(rt.publisher, rt.db, rt.store, app.version).ServeStdio()
}
