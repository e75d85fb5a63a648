package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"longbox/internal/library"
)

// MustOpenStore opens a library store backed by a temp database and
// registers cleanup.
func MustOpenStore(t testing.TB) *library.Store {
	t.Helper()

	store, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewComic catalogs a comic record for tests using the provided store.
func NewComic(t testing.TB, store *library.Store, filename string, kind library.ArchiveKind) *library.Comic {
	t.Helper()

	comic, err := store.NewComic(context.Background(), filename, kind)
	if err != nil {
		t.Fatalf("store.NewComic: %v", err)
	}
	return comic
}
