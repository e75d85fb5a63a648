// Package daemon runs the background side of longbox: a single-instance
// guard, an import-directory watcher that triggers ingest runs, and the
// embedded HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"longbox/internal/config"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pagecache"
	"longbox/internal/pipeline"
)

// Daemon coordinates background processing and enforces single-instance
// execution via a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *library.Store
	registry *pipeline.Registry
	cache    *pagecache.Cache

	lockPath string
	lock     *flock.Flock

	api *apiServer

	trigger chan struct{}
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// Status is the daemon's runtime snapshot served over the API.
type Status struct {
	Running      bool                  `json:"running"`
	PID          int                   `json:"pid"`
	DatabasePath string                `json:"databasePath"`
	LockFilePath string                `json:"lockFilePath"`
	Pipelines    []string              `json:"pipelines"`
	Library      library.HealthSummary `json:"library"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *library.Store, registry *pipeline.Registry, cache *pagecache.Cache, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || registry == nil {
		return nil, errors.New("daemon requires config, store, and pipeline registry")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		registry: registry,
		cache:    cache,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		trigger:  make(chan struct{}, 1),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and launches the watcher, the sweep
// loop, and the API server. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another longbox daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	if err := d.startWatcher(runCtx); err != nil {
		// A watch failure degrades to poll-only operation.
		d.logger.Warn("import watcher unavailable, relying on poll sweep",
			logging.Error(err))
	}

	d.wg.Add(1)
	go d.sweepLoop(runCtx)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			cancel()
			d.wg.Wait()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("import_dir", d.cfg.Paths.ImportDir))
	return nil
}

// Stop shuts down background work and releases the instance lock.
func (d *Daemon) Stop() {
	// The API stop endpoint and the signal handler can both call Stop; the
	// swap lets exactly one caller run the shutdown sequence.
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.cancel()
	d.wg.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	close(d.done)
	d.logger.Info("daemon stopped")
}

// Done is closed once the daemon has fully stopped. Callers blocking on a
// running daemon select on this alongside their signal channel.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close stops the daemon and closes the library store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the current runtime snapshot.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Pipelines:    d.registry.Names(),
	}
	if summary, err := d.store.Health(ctx); err == nil {
		status.Library = summary
	}
	return status
}

// TriggerIngest requests an ingest run. Requests collapse: a pending
// trigger absorbs later ones until the sweep loop picks it up.
func (d *Daemon) TriggerIngest() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// sweepLoop runs ingest whenever the watcher fires and on a fixed poll
// interval as a fallback for events the watcher missed.
func (d *Daemon) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Pipeline.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.trigger:
		case <-ticker.C:
		}
		d.runIngest(ctx)
	}
}

func (d *Daemon) runIngest(ctx context.Context) {
	params := pipeline.DefaultParams(d.cfg)
	report, err := d.registry.Run(ctx, "ingest", params)
	if err != nil {
		d.logger.Error("ingest sweep failed", logging.Error(err))
		return
	}
	if report.Processed > 0 {
		d.logger.Info("ingest sweep finished",
			logging.String(logging.FieldRunID, report.RunID),
			logging.Int("processed", report.Processed),
			logging.Int("written", report.Written))
	}
}
