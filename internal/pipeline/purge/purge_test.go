package purge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"longbox/internal/checkout"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pipeline"
	"longbox/internal/state"
	"longbox/internal/testsupport"
)

func newStore(t *testing.T) *library.Store {
	return testsupport.MustOpenStore(t)
}

func newHandler(store *library.Store) *state.Handler {
	handler := state.NewHandler(logging.NewNop())
	handler.RegisterComicListener(state.NewPersistListener(store))
	return handler
}

func seedMarked(t *testing.T, store *library.Store, filename string) *library.Comic {
	t.Helper()
	ctx := context.Background()
	comic, err := store.NewComic(ctx, filename, library.ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	comic.State = library.ComicStable
	comic.Purging = true
	if err := store.UpdateComic(ctx, comic); err != nil {
		t.Fatal(err)
	}
	return comic
}

func TestPurgeDeletesRecordAndReadingListReferences(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	comic := seedMarked(t, store, "/library/gone.cbz")
	if err := store.AddToReadingList(ctx, "favorites", comic.ID); err != nil {
		t.Fatal(err)
	}
	keeper, err := store.NewComic(ctx, "/library/keeper.cbz", library.ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}

	p := New(store, checkout.NewManager(), newHandler(store), logging.NewNop())
	runner := pipeline.NewRunner(logging.NewNop(), nil)

	report, err := runner.Execute(ctx, p, pipeline.Params{ErrorThreshold: 10, BatchSize: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != pipeline.StatusSucceeded {
		t.Fatalf("status = %s: %s", report.Status, report.Error)
	}

	if _, err := store.GetComic(ctx, comic.ID); err == nil {
		t.Fatal("purged comic still present")
	}
	lists, err := store.ReadingListsForComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 0 {
		t.Fatalf("reading list references remain: %v", lists)
	}
	if _, err := store.GetComic(ctx, keeper.ID); err != nil {
		t.Fatalf("unrelated comic disappeared: %v", err)
	}
}

func TestPurgeDeletesBackingFileWhenRequested(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "gone.cbz")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	seedMarked(t, store, path)

	p := New(store, checkout.NewManager(), newHandler(store), logging.NewNop())
	runner := pipeline.NewRunner(logging.NewNop(), nil)

	if _, err := runner.Execute(ctx, p, pipeline.Params{
		ErrorThreshold:     10,
		BatchSize:          10,
		DeleteRemovedFiles: true,
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("backing file still present")
	}
}

func TestPurgeKeepsBackingFileByDefault(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "kept.cbz")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	seedMarked(t, store, path)

	p := New(store, checkout.NewManager(), newHandler(store), logging.NewNop())
	runner := pipeline.NewRunner(logging.NewNop(), nil)

	if _, err := runner.Execute(ctx, p, pipeline.Params{ErrorThreshold: 10, BatchSize: 10}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file removed without deleteRemovedFiles: %v", err)
	}
}
