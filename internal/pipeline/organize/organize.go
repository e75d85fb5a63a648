// Package organize moves cataloged archives into the final library layout
// derived from the renaming rule.
package organize

import (
	"context"
	"log/slog"

	"longbox/internal/checkout"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/organizer"
	"longbox/internal/pipeline"
)

// New assembles the organize pipeline.
func New(store *library.Store, checkouts *checkout.Manager, mover *organizer.Organizer, logger *slog.Logger) pipeline.Pipeline {
	logger = logging.NewComponentLogger(logger, "organize")
	return pipeline.Pipeline{
		Name:   "organize",
		Reader: &settledReader{store: store},
		Processors: []pipeline.Processor{
			&moveProcessor{checkouts: checkouts, mover: mover, logger: logger},
		},
		Writer: &locationWriter{store: store},
	}
}

// settledReader returns comics whose details are settled enough to place:
// fully ingested ones and scraped ones.
type settledReader struct {
	store *library.Store
}

func (r *settledReader) Name() string { return "settled" }

func (r *settledReader) Read(ctx context.Context, _ *pipeline.Run) ([]*library.Comic, error) {
	return r.store.ComicsInState(ctx, library.ComicStable, library.ComicScraped)
}

type moveProcessor struct {
	checkouts *checkout.Manager
	mover     *organizer.Organizer
	logger    *slog.Logger
}

func (p *moveProcessor) Name() string { return "move" }

func (p *moveProcessor) Process(ctx context.Context, run *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if run.Broken() {
		return pipeline.Continue(comic)
	}
	params := run.Params()

	var moved string
	err := p.checkouts.With(comic.ID, func() error {
		planned, err := p.mover.Plan(params.TargetDirectory, params.RenamingRule, comic)
		if err != nil {
			return err
		}
		if planned == comic.Filename {
			return nil
		}
		moved, err = p.mover.Move(params.TargetDirectory, params.RenamingRule, comic)
		return err
	})
	if err != nil {
		return pipeline.Failed(err)
	}
	if moved == "" {
		// Already in place; nothing for the writer to record.
		return pipeline.Drop()
	}
	comic.Filename = moved
	return pipeline.Continue(comic)
}

// locationWriter records the new archive locations.
type locationWriter struct {
	store *library.Store
}

func (w *locationWriter) Name() string { return "location" }

func (w *locationWriter) Write(ctx context.Context, _ *pipeline.Run, comics []*library.Comic) error {
	for _, comic := range comics {
		if err := w.store.UpdateComic(ctx, comic); err != nil {
			return err
		}
	}
	return nil
}
