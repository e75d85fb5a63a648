package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewComicAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/Saga #1.cbz", ArchiveCBZ)
	if err != nil {
		t.Fatalf("NewComic failed: %v", err)
	}
	if comic.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if comic.State != ComicUnprocessed {
		t.Errorf("State = %q, want %q", comic.State, ComicUnprocessed)
	}

	loaded, err := store.GetComic(ctx, comic.ID)
	if err != nil {
		t.Fatalf("GetComic failed: %v", err)
	}
	if loaded.Filename != comic.Filename {
		t.Errorf("Filename = %q, want %q", loaded.Filename, comic.Filename)
	}
	if loaded.Kind != ArchiveCBZ {
		t.Errorf("Kind = %q, want cbz", loaded.Kind)
	}
}

func TestGetComicNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetComic(context.Background(), 999)
	if !errors.Is(err, ErrComicNotFound) {
		t.Fatalf("expected ErrComicNotFound, got %v", err)
	}
}

func TestFindByFilename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.NewComic(ctx, "/library/a.cbz", ArchiveCBZ); err != nil {
		t.Fatal(err)
	}

	found, err := store.FindByFilename(ctx, "/library/a.cbz")
	if err != nil {
		t.Fatalf("FindByFilename failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected match")
	}

	missing, err := store.FindByFilename(ctx, "/library/b.cbz")
	if err != nil {
		t.Fatalf("FindByFilename failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown filename")
	}
}

func TestSaveComicUpsertsPages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/a.cbz", ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	comic.Pages = []Page{
		{Position: 0, Filename: "000.jpg", State: PageStable},
		{Position: 1, Filename: "001.jpg", State: PageStable},
	}
	if err := store.SaveComic(ctx, comic); err != nil {
		t.Fatalf("SaveComic failed: %v", err)
	}

	loaded, err := store.GetComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Pages) != 2 {
		t.Fatalf("page count = %d, want 2", len(loaded.Pages))
	}
	if loaded.Pages[0].Position != 0 || loaded.Pages[0].Filename != "000.jpg" {
		t.Errorf("cover page mismatch: %+v", loaded.Pages[0])
	}

	// Saving again with the same positions must not duplicate pages.
	if err := store.SaveComic(ctx, loaded); err != nil {
		t.Fatalf("second SaveComic failed: %v", err)
	}
	again, err := store.GetComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Pages) != 2 {
		t.Fatalf("page count after resave = %d, want 2", len(again.Pages))
	}
}

func TestSetPageDigestImmutable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/a.cbz", ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	comic.Pages = []Page{{Position: 0, Filename: "000.jpg", State: PageStable}}
	if err := store.SaveComic(ctx, comic); err != nil {
		t.Fatal(err)
	}
	pageID := comic.Pages[0].ID
	if pageID == 0 {
		t.Fatal("expected page id after save")
	}

	digest := "A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6"
	if err := store.SetPageDigest(ctx, pageID, digest, 800, 1200); err != nil {
		t.Fatalf("SetPageDigest failed: %v", err)
	}

	// Same digest again is fine (idempotent).
	if err := store.SetPageDigest(ctx, pageID, digest, 800, 1200); err != nil {
		t.Fatalf("idempotent SetPageDigest failed: %v", err)
	}

	// A different digest must be rejected.
	err = store.SetPageDigest(ctx, pageID, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", 800, 1200)
	if !errors.Is(err, ErrDigestImmutable) {
		t.Fatalf("expected ErrDigestImmutable, got %v", err)
	}

	// Explicit content update clears the digest and allows recomputation.
	if err := store.ClearPageDigest(ctx, pageID); err != nil {
		t.Fatalf("ClearPageDigest failed: %v", err)
	}
	if err := store.SetPageDigest(ctx, pageID, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", 800, 1200); err != nil {
		t.Fatalf("SetPageDigest after clear failed: %v", err)
	}
}

func TestPagesWithDigestSpansComics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	digest := "A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6"

	for _, name := range []string{"/library/a.cbz", "/library/b.cbz"} {
		comic, err := store.NewComic(ctx, name, ArchiveCBZ)
		if err != nil {
			t.Fatal(err)
		}
		comic.Pages = []Page{{Position: 0, Filename: "000.jpg", Digest: digest, State: PageStable}}
		if err := store.SaveComic(ctx, comic); err != nil {
			t.Fatal(err)
		}
	}

	pages, err := store.PagesWithDigest(ctx, digest)
	if err != nil {
		t.Fatalf("PagesWithDigest failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("page count = %d, want 2", len(pages))
	}
	if pages[0].ComicID == pages[1].ComicID {
		t.Error("expected pages from two different comics")
	}
}

func TestDeleteComicRemovesReadingListRefs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/a.cbz", ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddToReadingList(ctx, "favorites", comic.ID); err != nil {
		t.Fatal(err)
	}

	lists, err := store.ReadingListsForComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0] != "favorites" {
		t.Fatalf("lists = %v, want [favorites]", lists)
	}

	if err := store.DeleteComic(ctx, comic.ID); err != nil {
		t.Fatalf("DeleteComic failed: %v", err)
	}

	lists, err = store.ReadingListsForComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 0 {
		t.Errorf("lists after delete = %v, want empty", lists)
	}

	_, err = store.GetComic(ctx, comic.ID)
	if !errors.Is(err, ErrComicNotFound) {
		t.Fatalf("expected ErrComicNotFound after delete, got %v", err)
	}
}

func TestRenumberPages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	comic, err := store.NewComic(ctx, "/library/a.cbz", ArchiveCBZ)
	if err != nil {
		t.Fatal(err)
	}
	comic.Pages = []Page{
		{Position: 0, Filename: "000.jpg", State: PageStable},
		{Position: 1, Filename: "001.jpg", State: PageDeleted},
		{Position: 2, Filename: "002.jpg", State: PageStable},
	}
	if err := store.SaveComic(ctx, comic); err != nil {
		t.Fatal(err)
	}

	removed, err := store.DeletePagesInState(ctx, comic.ID, PageDeleted)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if err := store.RenumberPages(ctx, comic.ID); err != nil {
		t.Fatalf("RenumberPages failed: %v", err)
	}

	loaded, err := store.GetComic(ctx, comic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Pages) != 2 {
		t.Fatalf("page count = %d, want 2", len(loaded.Pages))
	}
	if loaded.Pages[0].Position != 0 || loaded.Pages[1].Position != 1 {
		t.Errorf("positions not dense: %d, %d", loaded.Pages[0].Position, loaded.Pages[1].Position)
	}
	if loaded.Pages[1].Filename != "002.jpg" {
		t.Errorf("surviving page = %q, want 002.jpg", loaded.Pages[1].Filename)
	}
}

func TestBlockedHashInsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	entry := BlockedHash{Digest: "A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6", Label: "Cover A"}

	inserted, err := store.InsertBlockedHash(ctx, entry)
	if err != nil {
		t.Fatalf("InsertBlockedHash failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report true")
	}

	entry.Label = "Different Label"
	inserted, err = store.InsertBlockedHash(ctx, entry)
	if err != nil {
		t.Fatalf("second InsertBlockedHash failed: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate insert to report false")
	}

	stored, found, err := store.GetBlockedHash(ctx, entry.Digest)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected entry")
	}
	if stored.Label != "Cover A" {
		t.Errorf("Label = %q, want original label untouched", stored.Label)
	}
}
