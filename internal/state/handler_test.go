package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"longbox/internal/library"
)

type recordingComicListener struct {
	calls []string
	fail  error
}

func (r *recordingComicListener) ComicStateChanged(_ context.Context, _ *library.Comic, newState library.ComicState, event ComicEvent) error {
	r.calls = append(r.calls, string(event)+"->"+string(newState))
	return r.fail
}

func TestComicTransitionTable(t *testing.T) {
	tests := []struct {
		from  library.ComicState
		event ComicEvent
		want  library.ComicState
	}{
		{library.ComicUnprocessed, ComicDetailsUpdated, library.ComicProcessing},
		{library.ComicProcessing, ComicDetailsUpdated, library.ComicStable},
		{library.ComicStable, ComicDetailsUpdated, library.ComicStable},
		{library.ComicScraped, ComicDetailsUpdated, library.ComicStable},
		{library.ComicStable, ComicScrapedEvent, library.ComicScraped},
		{library.ComicStable, ComicMarkedForPurge, library.ComicPurging},
		{library.ComicPurging, ComicPurged, library.ComicRemoved},
	}

	for _, tt := range tests {
		got, err := NextComicState(tt.from, tt.event)
		if err != nil {
			t.Errorf("NextComicState(%s, %s) error: %v", tt.from, tt.event, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NextComicState(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
		}
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	if _, err := NextComicState(library.ComicRemoved, ComicDetailsUpdated); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("removed+detailsUpdated: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := NextComicState(library.ComicUnprocessed, ComicScrapedEvent); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unprocessed+scraped: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := NextPageState(library.PageDeleted, PageMarkForDeletion); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("deleted+markForDeletion: expected ErrInvalidTransition, got %v", err)
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	handler := NewHandler(nil)
	first := &recordingComicListener{}
	second := &recordingComicListener{}
	handler.RegisterComicListener(first)
	handler.RegisterComicListener(second)

	comic := &library.Comic{ID: 1, State: library.ComicUnprocessed}
	if err := handler.FireComicEvent(context.Background(), comic, ComicDetailsUpdated); err != nil {
		t.Fatalf("FireComicEvent failed: %v", err)
	}

	if len(first.calls) != 1 || len(second.calls) != 1 {
		t.Fatalf("listener calls = %d/%d, want 1/1", len(first.calls), len(second.calls))
	}
	if first.calls[0] != "detailsUpdated->processing" {
		t.Errorf("call = %q", first.calls[0])
	}
	if comic.State != library.ComicProcessing {
		t.Errorf("State = %s, want processing", comic.State)
	}
}

func TestListenerFailureLeavesStateUntouched(t *testing.T) {
	handler := NewHandler(nil)
	boom := errors.New("persist failed")
	handler.RegisterComicListener(&recordingComicListener{fail: boom})

	comic := &library.Comic{ID: 1, State: library.ComicUnprocessed}
	err := handler.FireComicEvent(context.Background(), comic, ComicDetailsUpdated)
	if !errors.Is(err, boom) {
		t.Fatalf("expected listener error, got %v", err)
	}
	if comic.State != library.ComicUnprocessed {
		t.Errorf("State = %s, want unchanged unprocessed", comic.State)
	}
}

func TestPersistAndCascadeListeners(t *testing.T) {
	store, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/a.cbz", library.ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	comic.State = library.ComicStable
	if err := store.UpdateComic(ctx, comic); err != nil {
		t.Fatal(err)
	}
	comic.Pages = []library.Page{{Position: 0, Filename: "000.jpg", State: library.PageStable}}
	if err := store.SaveComic(ctx, comic); err != nil {
		t.Fatal(err)
	}

	handler := NewHandler(nil)
	handler.RegisterComicListener(NewPersistListener(store))
	handler.RegisterPageListener(NewPersistListener(store))
	handler.RegisterPageListener(NewCascadeListener(store, handler, nil))

	page := &comic.Pages[0]
	if err := handler.FirePageEvent(ctx, page, PageMarkForDeletion); err != nil {
		t.Fatalf("FirePageEvent failed: %v", err)
	}
	if page.State != library.PageDeleted {
		t.Errorf("page State = %s, want deleted", page.State)
	}

	// Page state persisted, and the cascade marked the parent stable again
	// (stable + detailsUpdated -> stable) via a durable write.
	loaded, err := store.GetComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Pages[0].State != library.PageDeleted {
		t.Errorf("persisted page state = %s, want deleted", loaded.Pages[0].State)
	}
	if loaded.State != library.ComicStable {
		t.Errorf("persisted comic state = %s, want stable", loaded.State)
	}

	// Unmark flows back.
	if err := handler.FirePageEvent(ctx, page, PageUnmarkForDeletion); err != nil {
		t.Fatalf("unmark failed: %v", err)
	}
	if page.State != library.PageStable {
		t.Errorf("page State = %s, want stable", page.State)
	}
}
