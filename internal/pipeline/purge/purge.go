// Package purge removes comics flagged for deletion: reading-list references
// first, then the persisted record, optionally the backing file.
package purge

import (
	"context"
	"log/slog"
	"os"

	"longbox/internal/checkout"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pipeline"
	"longbox/internal/state"
)

// New assembles the purge pipeline.
func New(store *library.Store, checkouts *checkout.Manager, handler *state.Handler, logger *slog.Logger) pipeline.Pipeline {
	logger = logging.NewComponentLogger(logger, "purge")
	return pipeline.Pipeline{
		Name:   "purge",
		Reader: &markedReader{store: store, handler: handler},
		Processors: []pipeline.Processor{
			&unlinkReferencesProcessor{store: store, logger: logger},
		},
		Writer: &removeWriter{store: store, checkouts: checkouts, handler: handler, logger: logger},
	}
}

// markedReader returns comics flagged for purging and moves any stragglers
// into the purging state before handing them to the processors.
type markedReader struct {
	store   *library.Store
	handler *state.Handler
}

func (r *markedReader) Name() string { return "marked" }

func (r *markedReader) Read(ctx context.Context, _ *pipeline.Run) ([]*library.Comic, error) {
	comics, err := r.store.ComicsMarkedForPurge(ctx)
	if err != nil {
		return nil, err
	}
	for _, comic := range comics {
		if comic.State == library.ComicPurging {
			continue
		}
		if err := r.handler.FireComicEvent(ctx, comic, state.ComicMarkedForPurge); err != nil {
			return nil, err
		}
	}
	return comics, nil
}

// unlinkReferencesProcessor detaches the comic from every reading list
// before the record goes away.
type unlinkReferencesProcessor struct {
	store  *library.Store
	logger *slog.Logger
}

func (p *unlinkReferencesProcessor) Name() string { return "unlink_references" }

func (p *unlinkReferencesProcessor) Process(ctx context.Context, _ *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	removed, err := p.store.RemoveFromReadingLists(ctx, comic.ID)
	if err != nil {
		return pipeline.Failed(err)
	}
	if removed > 0 {
		p.logger.Info("reading list references removed",
			logging.Int64(logging.FieldComicID, comic.ID),
			logging.Int64("references", removed))
	}
	return pipeline.Continue(comic)
}

// removeWriter commits each removal: fire the purged event, delete the
// record, and optionally delete the backing file. File deletion failures are
// logged, never fatal; the record is already gone.
type removeWriter struct {
	store     *library.Store
	checkouts *checkout.Manager
	handler   *state.Handler
	logger    *slog.Logger
}

func (w *removeWriter) Name() string { return "remove" }

func (w *removeWriter) Write(ctx context.Context, run *pipeline.Run, comics []*library.Comic) error {
	deleteFiles := run.Params().DeleteRemovedFiles
	for _, comic := range comics {
		err := w.checkouts.With(comic.ID, func() error {
			if err := w.handler.FireComicEvent(ctx, comic, state.ComicPurged); err != nil {
				return err
			}
			if err := w.store.DeleteComic(ctx, comic.ID); err != nil {
				return err
			}
			if deleteFiles {
				if err := os.Remove(comic.Filename); err != nil && !os.IsNotExist(err) {
					w.logger.Warn("backing file not removed",
						logging.Int64(logging.FieldComicID, comic.ID),
						logging.String("path", comic.Filename),
						logging.Error(err))
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		w.logger.Info("comic purged",
			logging.Int64(logging.FieldComicID, comic.ID),
			logging.String("path", comic.Filename))
	}
	return nil
}
