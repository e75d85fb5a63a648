package blockedhash

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"longbox/internal/library"
	"longbox/internal/logging"
)

// csvHeader is the fixed export header row. Import rejects files that do not
// carry it verbatim.
var csvHeader = []string{"Page Label", "Hash Value", "Encoded Snapshot"}

// Export writes the full registry as UTF-8 delimited text: the header row,
// then one row per entry with the thumbnail base64-encoded (empty when the
// entry has none).
func (r *Registry) Export(ctx context.Context, w io.Writer) error {
	entries, err := r.store.ListBlockedHashes(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range entries {
		snapshot := ""
		if len(entry.Thumbnail) > 0 {
			snapshot = base64.StdEncoding.EncodeToString(entry.Thumbnail)
		}
		if err := writer.Write([]string{entry.Label, entry.Digest, snapshot}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Import reads rows in the export format and adds unknown digests to the
// registry, firing deletion fan-out for each. Rows whose digest already
// exists are left untouched, so importing the same file twice is a no-op.
// Returns counts of added and skipped rows.
func (r *Registry) Import(ctx context.Context, src io.Reader) (added, skipped int, err error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, errors.New("import file is empty")
		}
		return 0, 0, fmt.Errorf("read csv header: %w", err)
	}
	for i, want := range csvHeader {
		if header[i] != want {
			return 0, 0, fmt.Errorf("unexpected csv header %v, want %v", header, csvHeader)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, skipped, fmt.Errorf("read csv row: %w", err)
		}

		label, snapshot := row[0], row[2]
		digest, err := normalizeDigest(row[1])
		if err != nil {
			return added, skipped, err
		}
		var thumbnail []byte
		if snapshot != "" {
			thumbnail, err = base64.StdEncoding.DecodeString(snapshot)
			if err != nil {
				return added, skipped, fmt.Errorf("decode snapshot for %s: %w", digest, err)
			}
		}

		inserted, err := r.store.InsertBlockedHash(ctx, library.BlockedHash{
			Digest:    digest,
			Label:     label,
			Thumbnail: thumbnail,
		})
		if err != nil {
			return added, skipped, err
		}
		if !inserted {
			skipped++
			continue
		}
		added++
		if err := r.markMatchingPages(ctx, digest); err != nil {
			return added, skipped, err
		}
	}

	r.logger.Info("imported blocked hashes",
		logging.Int("added", added),
		logging.Int("skipped", skipped))
	return added, skipped, nil
}
