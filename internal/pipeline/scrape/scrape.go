// Package scrape fetches details from the external metadata source for
// comics flagged for batch scraping. The scrape step checks the circuit
// breaker before every remote call so an unreachable source fails the run
// once instead of once per item.
package scrape

import (
	"context"
	"log/slog"
	"strings"

	"longbox/internal/checkout"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/metadata"
	"longbox/internal/pipeline"
	"longbox/internal/state"
)

// New assembles the scrape pipeline.
func New(store *library.Store, checkouts *checkout.Manager, source metadata.Service, handler *state.Handler, logger *slog.Logger) pipeline.Pipeline {
	logger = logging.NewComponentLogger(logger, "scrape")
	return pipeline.Pipeline{
		Name:   "scrape",
		Reader: &flaggedReader{store: store},
		Processors: []pipeline.Processor{
			&scrapeProcessor{checkouts: checkouts, source: source, logger: logger},
		},
		Writer: &detailsWriter{store: store, handler: handler},
	}
}

// flaggedReader returns the comics queued for batch scraping.
type flaggedReader struct {
	store *library.Store
}

func (r *flaggedReader) Name() string { return "flagged" }

func (r *flaggedReader) Read(ctx context.Context, _ *pipeline.Run) ([]*library.Comic, error) {
	return r.store.ComicsMarkedForScrape(ctx)
}

type scrapeProcessor struct {
	checkouts *checkout.Manager
	source    metadata.Service
	logger    *slog.Logger
}

func (p *scrapeProcessor) Name() string { return "scrape" }

func (p *scrapeProcessor) Process(ctx context.Context, run *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if run.Params().SkipMetadata {
		return pipeline.Drop()
	}
	if run.Broken() {
		// The source is already considered unreachable; return the item
		// unchanged without attempting the call.
		return pipeline.Continue(comic)
	}
	if !comic.HasSource() {
		// Without a source reference there is nothing to look up, now or
		// ever; remove the item rather than counting it as a failure.
		p.logger.Info("comic has no metadata source",
			logging.Int64(logging.FieldComicID, comic.ID))
		return pipeline.Drop()
	}

	var details *metadata.Details
	err := p.checkouts.With(comic.ID, func() error {
		fetched, err := p.source.Scrape(ctx, comic.SourceName, comic.SourceRef)
		if err != nil {
			return err
		}
		details = fetched
		return nil
	})
	if err != nil {
		return pipeline.Failed(err)
	}

	if series := strings.TrimSpace(details.Series); series != "" {
		comic.Series = series
	}
	if title := strings.TrimSpace(details.Title); title != "" {
		comic.Title = title
	}
	if number := strings.TrimSpace(details.Number); number != "" {
		comic.Number = number
	}
	if details.Year > 0 {
		comic.Year = details.Year
	}
	// A cleared flag is how the writer tells a fetched item from one that
	// failed and was carried forward unchanged.
	comic.BatchScrape = false
	return pipeline.Continue(comic)
}

// detailsWriter persists the fetched details, clears the batch flag, and
// advances stable comics to scraped.
type detailsWriter struct {
	store   *library.Store
	handler *state.Handler
}

func (w *detailsWriter) Name() string { return "details" }

func (w *detailsWriter) Write(ctx context.Context, _ *pipeline.Run, comics []*library.Comic) error {
	for _, comic := range comics {
		if comic.BatchScrape {
			// Still flagged means the scrape failed or was short-circuited;
			// leave the record untouched so the next run retries it.
			continue
		}
		if err := w.store.UpdateComic(ctx, comic); err != nil {
			return err
		}
		if comic.State == library.ComicStable {
			if err := w.handler.FireComicEvent(ctx, comic, state.ComicScrapedEvent); err != nil {
				return err
			}
		}
	}
	return nil
}
