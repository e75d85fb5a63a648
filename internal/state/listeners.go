package state

import (
	"context"
	"errors"
	"log/slog"

	"longbox/internal/library"
	"longbox/internal/logging"
)

// PersistListener durably records new states in the library store. It is
// registered first so no later listener observes an unpersisted transition.
type PersistListener struct {
	store *library.Store
}

// NewPersistListener constructs the persistence listener.
func NewPersistListener(store *library.Store) *PersistListener {
	return &PersistListener{store: store}
}

func (l *PersistListener) ComicStateChanged(ctx context.Context, comic *library.Comic, newState library.ComicState, _ ComicEvent) error {
	return l.store.SetComicState(ctx, comic.ID, newState)
}

func (l *PersistListener) PageStateChanged(ctx context.Context, page *library.Page, newState library.PageState, _ PageEvent) error {
	if page.ID == 0 {
		// Page not yet committed; the pipeline writer persists it with the
		// batch, so there is no row to update.
		return nil
	}
	return l.store.SetPageState(ctx, page.ID, newState)
}

// CascadeListener translates page events into a detailsUpdated event on the
// owning comic, so any page change marks the parent as touched.
type CascadeListener struct {
	store   *library.Store
	handler *Handler
	logger  *slog.Logger
}

// NewCascadeListener constructs the page-to-comic cascade listener.
func NewCascadeListener(store *library.Store, handler *Handler, logger *slog.Logger) *CascadeListener {
	return &CascadeListener{
		store:   store,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "state-cascade"),
	}
}

func (l *CascadeListener) PageStateChanged(ctx context.Context, page *library.Page, _ library.PageState, event PageEvent) error {
	if page.ComicID == 0 {
		return nil
	}
	comic, err := l.store.GetComic(ctx, page.ComicID)
	if err != nil {
		if errors.Is(err, library.ErrComicNotFound) {
			// Page belongs to a batch not yet committed.
			return nil
		}
		return err
	}
	if err := l.handler.FireComicEvent(ctx, comic, ComicDetailsUpdated); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Parent is purging or removed; nothing to cascade.
			l.logger.Debug("cascade skipped",
				logging.Int64(logging.FieldComicID, comic.ID),
				logging.String("state", string(comic.State)),
				logging.String("page_event", string(event)))
			return nil
		}
		return err
	}
	return nil
}
