// Package app assembles the longbox service graph: store, state handler,
// checkout manager, registries, and the five pipelines. Both the CLI and the
// daemon build from here so in-process runs and daemon runs share wiring.
package app

import (
	"log/slog"

	"longbox/internal/blockedhash"
	"longbox/internal/checkout"
	"longbox/internal/config"
	"longbox/internal/daemon"
	"longbox/internal/library"
	"longbox/internal/metadata"
	"longbox/internal/notifications"
	"longbox/internal/organizer"
	"longbox/internal/pagecache"
	"longbox/internal/pipeline"
	"longbox/internal/pipeline/ingest"
	"longbox/internal/pipeline/organize"
	"longbox/internal/pipeline/purge"
	"longbox/internal/pipeline/rebuild"
	"longbox/internal/pipeline/scrape"
	"longbox/internal/state"
)

// App holds the initialized service graph.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *library.Store
	Handler   *state.Handler
	Checkouts *checkout.Manager
	Blocked   *blockedhash.Registry
	Cache     *pagecache.Cache
	Registry  *pipeline.Registry
	Notifier  notifications.Service
}

// Build opens the library store and wires every component. The caller owns
// Close.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := library.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	handler := state.NewHandler(logger)
	handler.RegisterComicListener(state.NewPersistListener(store))
	handler.RegisterPageListener(state.NewPersistListener(store))
	handler.RegisterPageListener(state.NewCascadeListener(store, handler, logger))

	checkouts := checkout.NewManager()
	blocked := blockedhash.NewRegistry(store, handler, logger)
	cache := pagecache.New(cfg.Paths.CacheDir, logger)
	notifier := notifications.NewService(cfg, logger)
	source := metadata.NewService(cfg)
	mover := organizer.New(logger)

	registry := pipeline.NewRegistry(pipeline.NewRunner(logger, notifier))
	registry.Register(ingest.New(store, checkouts, blocked, handler, cfg.Paths.ImportDir, logger))
	registry.Register(scrape.New(store, checkouts, source, handler, logger))
	registry.Register(organize.New(store, checkouts, mover, logger))
	registry.Register(purge.New(store, checkouts, handler, logger))
	registry.Register(rebuild.New(store, checkouts, handler, logger))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Handler:   handler,
		Checkouts: checkouts,
		Blocked:   blocked,
		Cache:     cache,
		Registry:  registry,
		Notifier:  notifier,
	}, nil
}

// NewDaemon constructs the daemon over the assembled graph.
func (a *App) NewDaemon() (*daemon.Daemon, error) {
	return daemon.New(a.Config, a.Store, a.Registry, a.Cache, a.Logger)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
