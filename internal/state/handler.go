package state

import (
	"context"
	"log/slog"

	"longbox/internal/library"
	"longbox/internal/logging"
)

// ComicListener observes comic transitions. Listeners run synchronously; an
// error from any listener aborts the transition and leaves the entity's
// in-memory state untouched.
type ComicListener interface {
	ComicStateChanged(ctx context.Context, comic *library.Comic, newState library.ComicState, event ComicEvent) error
}

// PageListener observes page transitions.
type PageListener interface {
	PageStateChanged(ctx context.Context, page *library.Page, newState library.PageState, event PageEvent) error
}

// Handler dispatches lifecycle events through the transition tables and an
// explicit listener list. Registration is additive and happens once at
// process start; it is not safe to register while events are firing.
type Handler struct {
	logger         *slog.Logger
	comicListeners []ComicListener
	pageListeners  []PageListener
}

// NewHandler constructs a state handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logging.NewComponentLogger(logger, "state")}
}

// RegisterComicListener appends a comic listener. Invocation order is
// registration order.
func (h *Handler) RegisterComicListener(listener ComicListener) {
	if listener != nil {
		h.comicListeners = append(h.comicListeners, listener)
	}
}

// RegisterPageListener appends a page listener.
func (h *Handler) RegisterPageListener(listener PageListener) {
	if listener != nil {
		h.pageListeners = append(h.pageListeners, listener)
	}
}

// FireComicEvent computes the next comic state, invokes every listener with
// (comic, newState, event), and only then commits the new state to the
// entity. Illegal event-in-state combinations return ErrInvalidTransition.
func (h *Handler) FireComicEvent(ctx context.Context, comic *library.Comic, event ComicEvent) error {
	next, err := NextComicState(comic.State, event)
	if err != nil {
		return err
	}

	for _, listener := range h.comicListeners {
		if err := listener.ComicStateChanged(ctx, comic, next, event); err != nil {
			return err
		}
	}

	h.logger.Debug("comic state transition",
		logging.Int64(logging.FieldComicID, comic.ID),
		logging.String("from", string(comic.State)),
		logging.String("to", string(next)),
		logging.String("event", string(event)))

	comic.State = next
	return nil
}

// FirePageEvent computes the next page state, invokes every listener, and
// commits the new state to the entity afterward.
func (h *Handler) FirePageEvent(ctx context.Context, page *library.Page, event PageEvent) error {
	next, err := NextPageState(page.State, event)
	if err != nil {
		return err
	}

	for _, listener := range h.pageListeners {
		if err := listener.PageStateChanged(ctx, page, next, event); err != nil {
			return err
		}
	}

	h.logger.Debug("page state transition",
		logging.Int64(logging.FieldComicID, page.ComicID),
		logging.Int("position", page.Position),
		logging.String("from", string(page.State)),
		logging.String("to", string(next)),
		logging.String("event", string(event)))

	page.State = next
	return nil
}
