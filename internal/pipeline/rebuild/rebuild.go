// Package rebuild rewrites archive containers, dropping pages marked
// deleted and renumbering the survivors into a dense sequence.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"longbox/internal/checkout"
	"longbox/internal/comicfile"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pipeline"
	"longbox/internal/state"
)

// New assembles the rebuild pipeline.
func New(store *library.Store, checkouts *checkout.Manager, handler *state.Handler, logger *slog.Logger) pipeline.Pipeline {
	logger = logging.NewComponentLogger(logger, "rebuild")
	return pipeline.Pipeline{
		Name:   "rebuild",
		Reader: &flaggedReader{store: store},
		Processors: []pipeline.Processor{
			&rewriteProcessor{checkouts: checkouts, logger: logger},
		},
		Writer: &sequenceWriter{store: store, handler: handler},
	}
}

// flaggedReader returns comics whose delete-pages-on-rebuild flag is set.
type flaggedReader struct {
	store *library.Store
}

func (r *flaggedReader) Name() string { return "flagged" }

func (r *flaggedReader) Read(ctx context.Context, _ *pipeline.Run) ([]*library.Comic, error) {
	return r.store.ComicsMarkedForRebuild(ctx)
}

// rewriteProcessor rebuilds the container under checkout, keeping only
// stable pages.
type rewriteProcessor struct {
	checkouts *checkout.Manager
	logger    *slog.Logger
}

func (p *rewriteProcessor) Name() string { return "rewrite" }

func (p *rewriteProcessor) Process(ctx context.Context, run *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if run.Broken() {
		return pipeline.Continue(comic)
	}

	survivors := comic.ActivePages()
	if len(survivors) == len(comic.Pages) && comic.Kind == library.ArchiveCBZ {
		// Nothing to drop and the container is already the target format.
		comic.DeletePagesOnRebuild = false
		return pipeline.Continue(comic)
	}
	if len(survivors) == 0 {
		p.logger.Warn("rebuild would leave an empty archive",
			logging.Int64(logging.FieldComicID, comic.ID))
		return pipeline.Drop()
	}

	var rebuilt string
	err := p.checkouts.With(comic.ID, func() error {
		path, err := comicfile.RebuildArchive(comic.Filename, comic.Kind, survivors)
		if err != nil {
			return err
		}
		rebuilt = path
		return nil
	})
	if err != nil {
		return pipeline.Failed(err)
	}

	p.logger.Info("archive rebuilt",
		logging.Int64(logging.FieldComicID, comic.ID),
		logging.Int("pages_kept", len(survivors)),
		logging.Int("pages_dropped", len(comic.Pages)-len(survivors)))

	comic.Filename = rebuilt
	comic.Kind = library.ArchiveCBZ
	comic.DeletePagesOnRebuild = false

	// Renumber the in-memory sequence to match the dense entry names the
	// rebuilt container uses.
	for i := range survivors {
		survivors[i].Position = i
		survivors[i].Filename = fmt.Sprintf("%03d%s", i, filepath.Ext(survivors[i].Filename))
	}
	comic.Pages = survivors
	return pipeline.Continue(comic)
}

// sequenceWriter drops removed page rows, renumbers the survivors, and
// persists the rewritten comic.
type sequenceWriter struct {
	store   *library.Store
	handler *state.Handler
}

func (w *sequenceWriter) Name() string { return "sequence" }

func (w *sequenceWriter) Write(ctx context.Context, _ *pipeline.Run, comics []*library.Comic) error {
	for _, comic := range comics {
		if comic.DeletePagesOnRebuild {
			// Short-circuited after a breaker trip; leave the flag set for
			// the next run.
			continue
		}
		if _, err := w.store.DeletePagesInState(ctx, comic.ID, library.PageDeleted); err != nil {
			return err
		}
		if err := w.store.RenumberPages(ctx, comic.ID); err != nil {
			return err
		}
		if err := w.store.SaveComic(ctx, comic); err != nil {
			return err
		}
		if comic.State == library.ComicProcessing {
			if err := w.handler.FireComicEvent(ctx, comic, state.ComicDetailsUpdated); err != nil {
				return err
			}
		}
	}
	return nil
}
