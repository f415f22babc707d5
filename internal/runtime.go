package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/ansuz/internal/ghost"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg       *Config
	logger    *slog.Logger
	store     *storage.FS
	db        *index.DB
	registry  *prometheus.Registry
	publisher *publish.Publisher
}

func (a *application) init() error {
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.logOut == nil {
		a.logOut = os.Stdout
	}
	if a.version == "" {
		a.version = "dev"
	}
	return nil
}

// newRuntime opens the vault and the cache and wires the publisher. When
// syncOnRun is set the cache is refreshed from disk before every selection;
// otherwise the caller keeps it fresh (the watcher in serve mode).
func newRuntime(a *application, syncOnRun bool, extra ...publish.Option) (*runtime, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("ghost_enabled", cfg.Ghost.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	registry := prometheus.NewRegistry()
	opts := []publish.Option{
		publish.WithRenderer(render.New()),
		publish.WithJournal(db),
		publish.WithRecorder(metrics.NewPrometheusRecorder(registry)),
		publish.WithLogger(logger),
	}
	opts = append(opts, ghostOptions(cfg.Ghost, logger)...)
	opts = append(opts, extra...)

	catalog := func() (publish.DocumentIndex, error) {
		if syncOnRun {
			if err := index.Sync(db, store, logger); err != nil {
				return nil, err
			}
		}
		return db.Catalog()
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		db:        db,
		registry:  registry,
		publisher: publish.NewPublisher(store, catalog, opts...),
	}, nil
}

// ghostOptions builds the Ghost client. An unusable configuration leaves the
// platform unset so every run reports it once instead of failing at startup.
func ghostOptions(cfg GhostConfig, logger *slog.Logger) []publish.Option {
	platform := cfg.Platform()
	if !cfg.Enabled || !platform.Usable() {
		return []publish.Option{publish.WithPlatform(platform, nil)}
	}
	client, err := ghost.New(ghost.Config{
		APIURL:     cfg.APIURL,
		AdminToken: cfg.AdminToken,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		logger.Error("ghost client init failed", slog.String("error", err.Error()))
		return []publish.Option{publish.WithPlatform(platform, nil)}
	}
	opts := []publish.Option{publish.WithPlatform(platform, client)}
	if cfg.UploadImages {
		opts = append(opts, publish.WithMediaHost(client))
	}
	return opts
}

func (r *runtime) Close() {
	if err := r.db.Close(); err != nil {
		r.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}
