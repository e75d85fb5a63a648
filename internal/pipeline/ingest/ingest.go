// Package ingest catalogs newly discovered archives: classify the container,
// load the page list, hash unhashed pages under checkout, mark pages whose
// digest is blocked, and attach an embedded metadata descriptor when one is
// present.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"longbox/internal/blockedhash"
	"longbox/internal/checkout"
	"longbox/internal/comicfile"
	"longbox/internal/fingerprint"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pipeline"
	"longbox/internal/services"
	"longbox/internal/state"
)

// New assembles the ingest pipeline.
func New(store *library.Store, checkouts *checkout.Manager, blocked *blockedhash.Registry, handler *state.Handler, importDir string, logger *slog.Logger) pipeline.Pipeline {
	logger = logging.NewComponentLogger(logger, "ingest")
	return pipeline.Pipeline{
		Name:   "ingest",
		Reader: &discoverReader{store: store, importDir: importDir, logger: logger},
		Processors: []pipeline.Processor{
			&classifyProcessor{},
			&loadPagesProcessor{},
			&hashProcessor{store: store, checkouts: checkouts, logger: logger},
			&blockScanProcessor{blocked: blocked, handler: handler},
			&comicInfoProcessor{logger: logger},
		},
		Writer: &catalogWriter{store: store, handler: handler, logger: logger},
	}
}

// discoverReader walks the import directory and returns one comic per
// archive, creating records for files not yet cataloged.
type discoverReader struct {
	store     *library.Store
	importDir string
	logger    *slog.Logger
}

func (r *discoverReader) Name() string { return "discover" }

func (r *discoverReader) Read(ctx context.Context, _ *pipeline.Run) ([]*library.Comic, error) {
	var comics []*library.Comic
	err := filepath.WalkDir(r.importDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cbz", ".cbr":
		default:
			return nil
		}

		comic, err := r.store.FindByFilename(ctx, path)
		if err != nil {
			return err
		}
		if comic == nil {
			kind, err := comicfile.Classify(path)
			if err != nil {
				r.logger.Warn("unreadable archive skipped",
					logging.String("path", path),
					logging.Error(err))
				return nil
			}
			comic, err = r.store.NewComic(ctx, path, kind)
			if err != nil {
				return err
			}
			r.logger.Info("archive cataloged",
				logging.Int64(logging.FieldComicID, comic.ID),
				logging.String("path", path))
		}
		if comic.State == library.ComicRemoved || comic.State == library.ComicPurging {
			return nil
		}
		comics = append(comics, comic)
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "ingest", "discover", r.importDir, err)
	}
	return comics, nil
}

// classifyProcessor confirms the archive kind by magic bytes, correcting
// records whose extension lied.
type classifyProcessor struct{}

func (p *classifyProcessor) Name() string { return "classify" }

func (p *classifyProcessor) Process(_ context.Context, _ *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	kind, err := comicfile.Classify(comic.Filename)
	if err != nil {
		return pipeline.Failed(services.Wrap(services.ErrAdaptor, "ingest", "classify", comic.Filename, err))
	}
	if kind == library.ArchiveUnknown {
		// Not a container we can open; there is nothing more this run can
		// do with the item.
		return pipeline.Drop()
	}
	comic.Kind = kind
	return pipeline.Continue(comic)
}

// loadPagesProcessor merges the archive's page listing into the comic's page
// sequence, assigning positions in natural-sort order.
type loadPagesProcessor struct{}

func (p *loadPagesProcessor) Name() string { return "load_pages" }

func (p *loadPagesProcessor) Process(_ context.Context, _ *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	names, err := comicfile.ListPages(comic.Filename, comic.Kind)
	if err != nil {
		return pipeline.Failed(services.Wrap(services.ErrAdaptor, "ingest", "list_pages", comic.Filename, err))
	}
	if len(names) == 0 {
		return pipeline.Failed(services.Wrap(services.ErrValidation, "ingest", "list_pages",
			fmt.Sprintf("%s contains no pages", comic.Filename), nil))
	}

	existing := make(map[int]library.Page, len(comic.Pages))
	for _, page := range comic.Pages {
		existing[page.Position] = page
	}

	pages := make([]library.Page, 0, len(names))
	for position, name := range names {
		if page, ok := existing[position]; ok && page.Filename == name {
			pages = append(pages, page)
			continue
		}
		pages = append(pages, library.Page{
			ComicID:  comic.ID,
			Position: position,
			Filename: name,
			State:    library.PageStable,
		})
	}
	comic.Pages = pages
	return pipeline.Continue(comic)
}

// hashProcessor computes digests and dimensions for pages that lack them.
// The whole pass runs under the comic's checkout so no concurrent run
// mutates the same page sequence.
type hashProcessor struct {
	store     *library.Store
	checkouts *checkout.Manager
	logger    *slog.Logger
}

func (p *hashProcessor) Name() string { return "hash" }

func (p *hashProcessor) Process(ctx context.Context, run *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if run.Broken() {
		return pipeline.Continue(comic)
	}

	err := p.checkouts.With(comic.ID, func() error {
		for i := range comic.Pages {
			page := &comic.Pages[i]
			if page.Digest != "" {
				continue
			}
			data, err := comicfile.LoadPageBytes(comic.Filename, comic.Kind, page.Filename)
			if err != nil {
				return services.Wrap(services.ErrAdaptor, "ingest", "load_page_bytes", page.Filename, err)
			}
			page.Digest = fingerprint.Digest(data)
			if width, height, err := fingerprint.Probe(data); err == nil {
				page.Width = width
				page.Height = height
			} else {
				// Dimensions stay unset; an undecodable image is still a
				// page with valid bytes.
				p.logger.Debug("image probe failed",
					logging.Int64(logging.FieldComicID, comic.ID),
					logging.String("page", page.Filename),
					logging.Error(err))
			}
			if page.ID != 0 {
				if err := p.store.SetPageDigest(ctx, page.ID, page.Digest, page.Width, page.Height); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return pipeline.Failed(err)
	}
	return pipeline.Continue(comic)
}

// blockScanProcessor fires markForDeletion for pages whose digest is in the
// blocked-hash registry.
type blockScanProcessor struct {
	blocked *blockedhash.Registry
	handler *state.Handler
}

func (p *blockScanProcessor) Name() string { return "block_scan" }

func (p *blockScanProcessor) Process(ctx context.Context, run *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if run.Params().SkipBlockingPages {
		return pipeline.Continue(comic)
	}

	for i := range comic.Pages {
		page := &comic.Pages[i]
		if page.Digest == "" || page.State != library.PageStable {
			continue
		}
		blocked, err := p.blocked.IsBlocked(ctx, page.Digest)
		if err != nil {
			return pipeline.Failed(err)
		}
		if !blocked {
			continue
		}
		if err := p.handler.FirePageEvent(ctx, page, state.PageMarkForDeletion); err != nil {
			return pipeline.Failed(err)
		}
	}
	return pipeline.Continue(comic)
}

// comicInfoProcessor attaches the embedded descriptor as the comic's
// metadata source when the archive ships a ComicInfo.xml.
type comicInfoProcessor struct {
	logger *slog.Logger
}

func (p *comicInfoProcessor) Name() string { return "comic_info" }

func (p *comicInfoProcessor) Process(_ context.Context, _ *pipeline.Run, comic *library.Comic) pipeline.Outcome {
	if comic.HasSource() {
		return pipeline.Continue(comic)
	}
	found, err := comicfile.HasComicInfo(comic.Filename, comic.Kind)
	if err != nil {
		return pipeline.Failed(services.Wrap(services.ErrAdaptor, "ingest", "comic_info", comic.Filename, err))
	}
	if found {
		comic.SourceName = "comicinfo"
		comic.SourceRef = "ComicInfo.xml"
		p.logger.Debug("embedded descriptor attached",
			logging.Int64(logging.FieldComicID, comic.ID))
	}
	return pipeline.Continue(comic)
}

// catalogWriter commits the batch and advances each comic's lifecycle:
// discovery moves unprocessed comics to processing, and a fully hashed
// page sequence moves them on to stable.
type catalogWriter struct {
	store   *library.Store
	handler *state.Handler
	logger  *slog.Logger
}

func (w *catalogWriter) Name() string { return "catalog" }

func (w *catalogWriter) Write(ctx context.Context, _ *pipeline.Run, comics []*library.Comic) error {
	for _, comic := range comics {
		if err := w.store.SaveComic(ctx, comic); err != nil {
			return err
		}
		if comic.State == library.ComicUnprocessed {
			if err := w.handler.FireComicEvent(ctx, comic, state.ComicDetailsUpdated); err != nil {
				return err
			}
		}
		if comic.State == library.ComicProcessing && comic.HasDigests() {
			if err := w.handler.FireComicEvent(ctx, comic, state.ComicDetailsUpdated); err != nil {
				return err
			}
		}
	}
	return nil
}
