// Package blockedhash maintains the global set of disallowed page digests.
// Blocking a digest marks every matching page in the library for deletion;
// unblocking restores them. The registry round-trips losslessly to a CSV
// format for exchange between libraries.
package blockedhash

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"longbox/internal/fingerprint"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/services"
	"longbox/internal/state"
)

// Registry is the shared, globally visible blocked-hash set. Mutations are
// serialized with a mutex so block/unblock never interleaves with another
// mutation's fan-out; concurrent reads go straight to the store.
type Registry struct {
	mu      sync.Mutex
	store   *library.Store
	handler *state.Handler
	logger  *slog.Logger
}

// NewRegistry constructs the registry around the library store and the page
// state handler used for deletion fan-out.
func NewRegistry(store *library.Store, handler *state.Handler, logger *slog.Logger) *Registry {
	return &Registry{
		store:   store,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "blockedhash"),
	}
}

// normalizeDigest upper-cases digest and rejects values without the
// 32-hex-char digest shape. User-supplied digests (CLI, CSV import) arrive
// in either case while the hasher and all store rows carry uppercase, so
// every mutation normalizes here before touching the store.
func normalizeDigest(digest string) (string, error) {
	digest = strings.ToUpper(strings.TrimSpace(digest))
	if !fingerprint.IsValidDigest(digest) {
		return "", services.Wrap(services.ErrValidation, "blockedhash", "normalize_digest",
			fmt.Sprintf("malformed digest %q", digest), nil)
	}
	return digest, nil
}

// IsBlocked reports whether digest is currently disallowed.
func (r *Registry) IsBlocked(ctx context.Context, digest string) (bool, error) {
	_, found, err := r.store.GetBlockedHash(ctx, digest)
	return found, err
}

// List returns all registry entries.
func (r *Registry) List(ctx context.Context) ([]library.BlockedHash, error) {
	return r.store.ListBlockedHashes(ctx)
}

// Block records digest as disallowed and fires markForDeletion for every
// stable page in the library currently sharing it.
func (r *Registry) Block(ctx context.Context, label, digest string, thumbnail []byte) error {
	digest, err := normalizeDigest(digest)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added, err := r.store.InsertBlockedHash(ctx, library.BlockedHash{
		Digest:    digest,
		Label:     label,
		Thumbnail: thumbnail,
	})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	return r.markMatchingPages(ctx, digest)
}

// Unblock removes digest from the registry and fires unmarkForDeletion for
// every deleted page in the whole library sharing it, not just one comic.
func (r *Registry) Unblock(ctx context.Context, digest string) error {
	digest, err := normalizeDigest(digest)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteBlockedHash(ctx, digest); err != nil {
		return err
	}

	pages, err := r.store.PagesWithDigest(ctx, digest)
	if err != nil {
		return err
	}
	restored := 0
	for _, page := range pages {
		if page.State != library.PageDeleted {
			continue
		}
		if err := r.handler.FirePageEvent(ctx, page, state.PageUnmarkForDeletion); err != nil {
			return fmt.Errorf("unmark page %d: %w", page.ID, err)
		}
		restored++
	}

	r.logger.Info("unblocked digest",
		logging.String(logging.FieldDigest, digest),
		logging.Int("pages_restored", restored))
	return nil
}

func (r *Registry) markMatchingPages(ctx context.Context, digest string) error {
	pages, err := r.store.PagesWithDigest(ctx, digest)
	if err != nil {
		return err
	}
	marked := 0
	for _, page := range pages {
		if page.State != library.PageStable {
			continue
		}
		if err := r.handler.FirePageEvent(ctx, page, state.PageMarkForDeletion); err != nil {
			return fmt.Errorf("mark page %d: %w", page.ID, err)
		}
		marked++
	}

	r.logger.Info("blocked digest",
		logging.String(logging.FieldDigest, digest),
		logging.Int("pages_marked", marked))
	return nil
}
