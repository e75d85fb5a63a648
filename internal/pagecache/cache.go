// Package pagecache is a content-addressable disk store for page images.
// Files are keyed solely by content digest, so entries never go stale and
// the cache needs no eviction policy: bytes for a fixed digest never change.
package pagecache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"longbox/internal/fingerprint"
	"longbox/internal/logging"
)

// Cache stores page bytes under a root directory using a digest-derived
// four-level layout. Concurrent use needs no locking: writes for a given
// digest are idempotent and paths for distinct digests never collide.
type Cache struct {
	root   string
	logger *slog.Logger
}

// New constructs a page cache rooted at dir.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		root:   dir,
		logger: logging.NewComponentLogger(logger, "pagecache"),
	}
}

// Root returns the configured cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// PathFor derives the storage path for a digest: four consecutive 8-character
// groups nested as directories, the last group doubling as the leaf filename.
// Derivation is a pure function of the digest; it returns false for values
// that are not exactly 32 characters.
func (c *Cache) PathFor(digest string) (string, bool) {
	if len(digest) != fingerprint.DigestLength {
		return "", false
	}
	return filepath.Join(
		c.root,
		digest[0:8],
		digest[8:16],
		digest[16:24],
		digest[24:32],
	), true
}

// FindByDigest returns the cached bytes for digest. A missing entry, an
// empty digest, or a malformed digest is a miss, not an error; no I/O is
// attempted for malformed digests.
func (c *Cache) FindByDigest(digest string) ([]byte, bool, error) {
	path, ok := c.PathFor(digest)
	if !ok {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// SaveByDigest writes data under digest, computing the digest from data when
// the caller passes an empty string. Writes are idempotent: all writes for
// one digest carry identical bytes by construction, so overwriting is safe
// and no ordering guarantee is needed. Returns the digest actually used.
func (c *Cache) SaveByDigest(digest string, data []byte) (string, error) {
	if digest == "" {
		digest = fingerprint.Digest(data)
	}
	path, ok := c.PathFor(digest)
	if !ok {
		return "", fmt.Errorf("malformed digest %q", digest)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache directories: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write cache entry: %w", err)
	}

	c.logger.Debug("cached page content",
		logging.String(logging.FieldDigest, digest),
		logging.Int("bytes", len(data)))
	return digest, nil
}

// Stats walks the cache and reports entry count and total bytes.
func (c *Cache) Stats() (entries int, totalBytes int64, err error) {
	err = filepath.WalkDir(c.root, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		entries++
		totalBytes += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, nil
	}
	return entries, totalBytes, err
}
