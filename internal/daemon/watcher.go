package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"longbox/internal/logging"
)

// startWatcher begins watching the import directory and converts archive
// create/rename events into ingest triggers.
func (d *Daemon) startWatcher(ctx context.Context) error {
	importDir := strings.TrimSpace(d.cfg.Paths.ImportDir)
	if importDir == "" {
		return fmt.Errorf("import directory not configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(importDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", importDir, err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Write) {
					continue
				}
				switch strings.ToLower(filepath.Ext(event.Name)) {
				case ".cbz", ".cbr":
				default:
					continue
				}
				d.logger.Debug("import event",
					logging.String("path", event.Name),
					logging.String("op", event.Op.String()))
				d.TriggerIngest()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("import watcher error", logging.Error(err))
			}
		}
	}()
	return nil
}
