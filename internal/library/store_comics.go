package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NewComic inserts a freshly discovered archive in the unprocessed state.
func (s *Store) NewComic(ctx context.Context, filename string, kind ArchiveKind) (*Comic, error) {
	now := timestamp()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO comics (filename, kind, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		filename,
		string(kind),
		string(ComicUnprocessed),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert comic: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetComic(ctx, id)
}

// GetComic loads a comic and its page sequence by identifier.
func (s *Store) GetComic(ctx context.Context, id int64) (*Comic, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+comicColumns+" FROM comics WHERE id = ?", id)
	comic, err := scanComic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrComicNotFound, id)
		}
		return nil, fmt.Errorf("get comic: %w", err)
	}
	if err := s.loadPages(ctx, comic); err != nil {
		return nil, err
	}
	return comic, nil
}

// FindByFilename returns the comic cataloged under filename, if any.
func (s *Store) FindByFilename(ctx context.Context, filename string) (*Comic, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+comicColumns+" FROM comics WHERE filename = ?", filename)
	comic, err := scanComic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find comic by filename: %w", err)
	}
	if err := s.loadPages(ctx, comic); err != nil {
		return nil, err
	}
	return comic, nil
}

// UpdateComic persists the comic row (not its pages).
func (s *Store) UpdateComic(ctx context.Context, comic *Comic) error {
	if comic == nil {
		return errors.New("comic is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE comics SET filename = ?, kind = ?, state = ?, purging = ?, batch_scrape = ?,
            delete_pages_on_rebuild = ?, source_name = ?, source_ref = ?,
            series = ?, title = ?, number = ?, year = ?, updated_at = ?
         WHERE id = ?`,
		comic.Filename,
		string(comic.Kind),
		string(comic.State),
		boolToInt(comic.Purging),
		boolToInt(comic.BatchScrape),
		boolToInt(comic.DeletePagesOnRebuild),
		nullableString(comic.SourceName),
		nullableString(comic.SourceRef),
		comic.Series,
		comic.Title,
		comic.Number,
		comic.Year,
		timestamp(),
		comic.ID,
	)
	if err != nil {
		return fmt.Errorf("update comic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update comic rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrComicNotFound, comic.ID)
	}
	return nil
}

// SaveComic persists the comic row and its full page sequence in one
// transaction. Pages are upserted by (comic_id, position).
func (s *Store) SaveComic(ctx context.Context, comic *Comic) error {
	if comic == nil {
		return errors.New("comic is nil")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE comics SET filename = ?, kind = ?, state = ?, purging = ?, batch_scrape = ?,
                delete_pages_on_rebuild = ?, source_name = ?, source_ref = ?,
                series = ?, title = ?, number = ?, year = ?, updated_at = ?
             WHERE id = ?`,
			comic.Filename,
			string(comic.Kind),
			string(comic.State),
			boolToInt(comic.Purging),
			boolToInt(comic.BatchScrape),
			boolToInt(comic.DeletePagesOnRebuild),
			nullableString(comic.SourceName),
			nullableString(comic.SourceRef),
			comic.Series,
			comic.Title,
			comic.Number,
			comic.Year,
			timestamp(),
			comic.ID,
		)
		if err != nil {
			return fmt.Errorf("update comic: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update comic rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: id %d", ErrComicNotFound, comic.ID)
		}

		for i := range comic.Pages {
			page := &comic.Pages[i]
			page.ComicID = comic.ID
			res, err := tx.ExecContext(
				ctx,
				`INSERT INTO pages (comic_id, position, filename, digest, width, height, state)
                 VALUES (?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT (comic_id, position) DO UPDATE SET
                    filename = excluded.filename,
                    digest = COALESCE(pages.digest, excluded.digest),
                    width = excluded.width,
                    height = excluded.height,
                    state = excluded.state`,
				page.ComicID,
				page.Position,
				page.Filename,
				nullableString(page.Digest),
				nullableInt(page.Width),
				nullableInt(page.Height),
				string(page.State),
			)
			if err != nil {
				return fmt.Errorf("upsert page %d: %w", page.Position, err)
			}
			if page.ID == 0 {
				if id, err := res.LastInsertId(); err == nil {
					page.ID = id
				}
			}
		}
		return nil
	})
}

// DeleteComic removes the comic record, its pages, and any reading-list
// references in one transaction. The backing file is the caller's problem.
func (s *Store) DeleteComic(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM reading_list_entries WHERE comic_id = ?", id); err != nil {
			return fmt.Errorf("delete reading list entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE comic_id = ?", id); err != nil {
			return fmt.Errorf("delete pages: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM comics WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete comic: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete comic rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: id %d", ErrComicNotFound, id)
		}
		return nil
	})
}

// ListComics returns all comics (without pages) ordered by filename.
func (s *Store) ListComics(ctx context.Context) ([]*Comic, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+comicColumns+" FROM comics ORDER BY filename")
	if err != nil {
		return nil, fmt.Errorf("list comics: %w", err)
	}
	defer rows.Close()

	var comics []*Comic
	for rows.Next() {
		comic, err := scanComic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comic: %w", err)
		}
		comics = append(comics, comic)
	}
	return comics, rows.Err()
}

// ComicsInState returns comics (with pages) currently in any of the given states.
func (s *Store) ComicsInState(ctx context.Context, states ...ComicState) ([]*Comic, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(states)*2)
	args := make([]any, 0, len(states))
	for i, state := range states {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, string(state))
	}

	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+comicColumns+" FROM comics WHERE state IN ("+string(placeholders)+") ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("comics in state: %w", err)
	}
	defer rows.Close()

	var comics []*Comic
	for rows.Next() {
		comic, err := scanComic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comic: %w", err)
		}
		comics = append(comics, comic)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, comic := range comics {
		if err := s.loadPages(ctx, comic); err != nil {
			return nil, err
		}
	}
	return comics, nil
}

// ComicsMarkedForPurge returns comics with the purging flag set.
func (s *Store) ComicsMarkedForPurge(ctx context.Context) ([]*Comic, error) {
	return s.comicsByFlag(ctx, "purging")
}

// ComicsMarkedForScrape returns comics with the batch-scrape flag set.
func (s *Store) ComicsMarkedForScrape(ctx context.Context) ([]*Comic, error) {
	return s.comicsByFlag(ctx, "batch_scrape")
}

// ComicsMarkedForRebuild returns comics with the delete-pages-on-rebuild
// flag set.
func (s *Store) ComicsMarkedForRebuild(ctx context.Context) ([]*Comic, error) {
	return s.comicsByFlag(ctx, "delete_pages_on_rebuild")
}

func (s *Store) comicsByFlag(ctx context.Context, column string) ([]*Comic, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+comicColumns+" FROM comics WHERE "+column+" = 1 ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("comics by flag %s: %w", column, err)
	}
	defer rows.Close()

	var comics []*Comic
	for rows.Next() {
		comic, err := scanComic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comic: %w", err)
		}
		comics = append(comics, comic)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, comic := range comics {
		if err := s.loadPages(ctx, comic); err != nil {
			return nil, err
		}
	}
	return comics, nil
}

// SetComicState persists only the lifecycle state column.
func (s *Store) SetComicState(ctx context.Context, id int64, state ComicState) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE comics SET state = ?, updated_at = ? WHERE id = ?",
		string(state),
		timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set comic state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set comic state rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrComicNotFound, id)
	}
	return nil
}

// Health reports aggregate comic counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(1) FROM comics GROUP BY state")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health query: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch ComicState(state) {
		case ComicUnprocessed:
			summary.Unprocessed = count
		case ComicProcessing:
			summary.Processing = count
		case ComicStable:
			summary.Stable = count
		case ComicScraped:
			summary.Scraped = count
		case ComicPurging:
			summary.Purging = count
		case ComicRemoved:
			summary.Removed = count
		}
	}
	return summary, rows.Err()
}
