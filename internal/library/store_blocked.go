package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"longbox/internal/services"
)

// ListBlockedHashes returns all blocked-hash records ordered by label.
func (s *Store) ListBlockedHashes(ctx context.Context) ([]BlockedHash, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT digest, label, thumbnail, created_at FROM blocked_hashes ORDER BY label, digest",
	)
	if err != nil {
		return nil, fmt.Errorf("list blocked hashes: %w", err)
	}
	defer rows.Close()

	var entries []BlockedHash
	for rows.Next() {
		entry, err := scanBlockedHash(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetBlockedHash looks up one blocked-hash record by digest.
func (s *Store) GetBlockedHash(ctx context.Context, digest string) (BlockedHash, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT digest, label, thumbnail, created_at FROM blocked_hashes WHERE digest = ?",
		digest,
	)
	entry, err := scanBlockedHash(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BlockedHash{}, false, nil
		}
		return BlockedHash{}, false, fmt.Errorf("get blocked hash: %w", err)
	}
	return entry, true, nil
}

// InsertBlockedHash stores a blocked-hash record. Inserting a digest that
// already exists is a no-op, which makes bulk import idempotent.
func (s *Store) InsertBlockedHash(ctx context.Context, entry BlockedHash) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO blocked_hashes (digest, label, thumbnail, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (digest) DO NOTHING`,
		entry.Digest,
		entry.Label,
		entry.Thumbnail,
		timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("insert blocked hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert blocked hash rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteBlockedHash removes a blocked-hash record by digest.
func (s *Store) DeleteBlockedHash(ctx context.Context, digest string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM blocked_hashes WHERE digest = ?", digest)
	if err != nil {
		return fmt.Errorf("delete blocked hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blocked hash rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: blocked hash %s", services.ErrNotFound, digest)
	}
	return nil
}

func scanBlockedHash(scanner interface{ Scan(dest ...any) error }) (BlockedHash, error) {
	var (
		digest     string
		label      string
		thumbnail  []byte
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&digest, &label, &thumbnail, &createdRaw); err != nil {
		return BlockedHash{}, err
	}
	entry := BlockedHash{Digest: digest, Label: label, Thumbnail: thumbnail}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
