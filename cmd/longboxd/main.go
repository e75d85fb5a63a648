package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"longbox/internal/app"
	"longbox/internal/config"
	"longbox/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   filepath.Join(cfg.Paths.LogDir, "longboxd.log"),
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("build services", logging.Error(err))
		return
	}
	defer a.Close()

	d, err := a.NewDaemon()
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	select {
	case <-ctx.Done():
		d.Stop()
	case <-d.Done():
		// Stopped via the API.
	}
	logger.Info("longboxd shut down")
}
