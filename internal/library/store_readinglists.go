package library

import (
	"context"
	"fmt"
)

// AddToReadingList appends a comic to a named reading list.
func (s *Store) AddToReadingList(ctx context.Context, listName string, comicID int64) error {
	var next int
	row := s.db.QueryRowContext(
		ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM reading_list_entries WHERE list_name = ?",
		listName,
	)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("next reading list position: %w", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		"INSERT INTO reading_list_entries (list_name, comic_id, position) VALUES (?, ?, ?)",
		listName,
		comicID,
		next,
	); err != nil {
		return fmt.Errorf("add reading list entry: %w", err)
	}
	return nil
}

// ReadingListsForComic returns the names of lists referencing a comic.
func (s *Store) ReadingListsForComic(ctx context.Context, comicID int64) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT DISTINCT list_name FROM reading_list_entries WHERE comic_id = ? ORDER BY list_name",
		comicID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading lists for comic: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan reading list name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RemoveFromReadingLists drops every reading-list reference to a comic.
func (s *Store) RemoveFromReadingLists(ctx context.Context, comicID int64) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		"DELETE FROM reading_list_entries WHERE comic_id = ?",
		comicID,
	)
	if err != nil {
		return 0, fmt.Errorf("remove reading list entries: %w", err)
	}
	return res.RowsAffected()
}
