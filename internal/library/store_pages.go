package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *Store) loadPages(ctx context.Context, comic *Comic) error {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+pageColumns+" FROM pages WHERE comic_id = ? ORDER BY position",
		comic.ID,
	)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	comic.Pages = comic.Pages[:0]
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return fmt.Errorf("scan page: %w", err)
		}
		comic.Pages = append(comic.Pages, *page)
	}
	return rows.Err()
}

// GetPage returns one page of a comic by ordinal position.
func (s *Store) GetPage(ctx context.Context, comicID int64, position int) (*Page, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT "+pageColumns+" FROM pages WHERE comic_id = ? AND position = ?",
		comicID,
		position,
	)
	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: comic %d position %d", ErrPageNotFound, comicID, position)
		}
		return nil, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

// SetPageDigest records a page's computed digest and dimensions. A digest,
// once set, is immutable; conflicting updates are rejected.
func (s *Store) SetPageDigest(ctx context.Context, pageID int64, digest string, width, height int) error {
	var existing sql.NullString
	row := s.db.QueryRowContext(ctx, "SELECT digest FROM pages WHERE id = ?", pageID)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
		}
		return fmt.Errorf("read page digest: %w", err)
	}
	if existing.Valid && existing.String != "" && existing.String != digest {
		return fmt.Errorf("%w: page %d has %s", ErrDigestImmutable, pageID, existing.String)
	}

	if _, err := s.db.ExecContext(
		ctx,
		"UPDATE pages SET digest = ?, width = ?, height = ? WHERE id = ?",
		digest,
		nullableInt(width),
		nullableInt(height),
		pageID,
	); err != nil {
		return fmt.Errorf("set page digest: %w", err)
	}
	return nil
}

// ClearPageDigest resets a page's digest for an explicit content update.
func (s *Store) ClearPageDigest(ctx context.Context, pageID int64) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE pages SET digest = NULL, width = NULL, height = NULL WHERE id = ?",
		pageID,
	)
	if err != nil {
		return fmt.Errorf("clear page digest: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear page digest rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	return nil
}

// SetPageState persists a page's lifecycle state.
func (s *Store) SetPageState(ctx context.Context, pageID int64, state PageState) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE pages SET state = ? WHERE id = ?",
		string(state),
		pageID,
	)
	if err != nil {
		return fmt.Errorf("set page state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set page state rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	return nil
}

// PagesWithDigest returns every page across the whole library whose digest
// matches. Used for blocking and unblocking fan-out.
func (s *Store) PagesWithDigest(ctx context.Context, digest string) ([]*Page, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+pageColumns+" FROM pages WHERE digest = ? ORDER BY comic_id, position",
		digest,
	)
	if err != nil {
		return nil, fmt.Errorf("pages with digest: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// DuplicateDigests returns digests shared by more than one page, with counts.
func (s *Store) DuplicateDigests(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT digest, COUNT(1) FROM pages WHERE digest IS NOT NULL GROUP BY digest HAVING COUNT(1) > 1",
	)
	if err != nil {
		return nil, fmt.Errorf("duplicate digests: %w", err)
	}
	defer rows.Close()

	duplicates := make(map[string]int)
	for rows.Next() {
		var digest string
		var count int
		if err := rows.Scan(&digest, &count); err != nil {
			return nil, fmt.Errorf("scan duplicate row: %w", err)
		}
		duplicates[digest] = count
	}
	return duplicates, rows.Err()
}

// DeletePagesInState removes page rows for a comic in the given state.
// Used by the rebuild pipeline after the archive container is rewritten.
func (s *Store) DeletePagesInState(ctx context.Context, comicID int64, state PageState) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		"DELETE FROM pages WHERE comic_id = ? AND state = ?",
		comicID,
		string(state),
	)
	if err != nil {
		return 0, fmt.Errorf("delete pages in state: %w", err)
	}
	return res.RowsAffected()
}

// RenumberPages rewrites the position sequence of a comic's surviving pages
// so positions stay dense after a rebuild drops pages.
func (s *Store) RenumberPages(ctx context.Context, comicID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(
			ctx,
			"SELECT id FROM pages WHERE comic_id = ? ORDER BY position",
			comicID,
		)
		if err != nil {
			return fmt.Errorf("list pages for renumber: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan page id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		// Two passes: offset positions out of range first so the
		// (comic_id, position) unique constraint never trips mid-update.
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, "UPDATE pages SET position = ? WHERE id = ?", -(i + 1), id); err != nil {
				return fmt.Errorf("offset page position: %w", err)
			}
		}
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, "UPDATE pages SET position = ? WHERE id = ?", i, id); err != nil {
				return fmt.Errorf("renumber page position: %w", err)
			}
		}
		return nil
	})
}
