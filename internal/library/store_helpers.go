package library

import (
	"database/sql"
	"strings"
	"time"
)

const comicColumns = "id, filename, kind, state, purging, batch_scrape, delete_pages_on_rebuild, source_name, source_ref, series, title, number, year, created_at, updated_at"

const pageColumns = "id, comic_id, position, filename, digest, width, height, state"

func scanComic(scanner interface{ Scan(dest ...any) error }) (*Comic, error) {
	var (
		id          int64
		filename    string
		kind        string
		state       string
		purging     sql.NullInt64
		batchScrape sql.NullInt64
		deletePages sql.NullInt64
		sourceName  sql.NullString
		sourceRef   sql.NullString
		series      sql.NullString
		title       sql.NullString
		number      sql.NullString
		year        sql.NullInt64
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&filename,
		&kind,
		&state,
		&purging,
		&batchScrape,
		&deletePages,
		&sourceName,
		&sourceRef,
		&series,
		&title,
		&number,
		&year,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	comic := &Comic{
		ID:         id,
		Filename:   filename,
		Kind:       ArchiveKind(kind),
		State:      ComicState(state),
		SourceName: sourceName.String,
		SourceRef:  sourceRef.String,
		Series:     series.String,
		Title:      title.String,
		Number:     number.String,
		Year:       int(year.Int64),
	}
	if purging.Valid {
		comic.Purging = purging.Int64 != 0
	}
	if batchScrape.Valid {
		comic.BatchScrape = batchScrape.Int64 != 0
	}
	if deletePages.Valid {
		comic.DeletePagesOnRebuild = deletePages.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		comic.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		comic.UpdatedAt = updated
	}
	return comic, nil
}

func scanPage(scanner interface{ Scan(dest ...any) error }) (*Page, error) {
	var (
		id       int64
		comicID  int64
		position int
		filename string
		digest   sql.NullString
		width    sql.NullInt64
		height   sql.NullInt64
		state    string
	)

	if err := scanner.Scan(&id, &comicID, &position, &filename, &digest, &width, &height, &state); err != nil {
		return nil, err
	}

	page := &Page{
		ID:       id,
		ComicID:  comicID,
		Position: position,
		Filename: filename,
		Digest:   digest.String,
		State:    PageState(state),
	}
	if width.Valid {
		page.Width = int(width.Int64)
	}
	if height.Valid {
		page.Height = int(height.Int64)
	}
	return page, nil
}

func parseTimeString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, sql.ErrNoRows
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
