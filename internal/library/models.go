package library

import (
	"strings"
	"time"
)

// ComicState represents the lifecycle of a comic.
type ComicState string

const (
	ComicUnprocessed ComicState = "unprocessed"
	ComicProcessing  ComicState = "processing"
	ComicStable      ComicState = "stable"
	ComicScraped     ComicState = "scraped"
	ComicPurging     ComicState = "purging"
	ComicRemoved     ComicState = "removed"
)

// PageState represents the lifecycle of a page within a comic.
type PageState string

const (
	PageStable  PageState = "stable"
	PageDeleted PageState = "deleted"
)

// ArchiveKind identifies the container format of a comic archive.
type ArchiveKind string

const (
	ArchiveCBZ     ArchiveKind = "cbz"
	ArchiveCBR     ArchiveKind = "cbr"
	ArchiveUnknown ArchiveKind = "unknown"
)

var allComicStates = []ComicState{
	ComicUnprocessed,
	ComicProcessing,
	ComicStable,
	ComicScraped,
	ComicPurging,
	ComicRemoved,
}

var comicStateSet = func() map[ComicState]struct{} {
	set := make(map[ComicState]struct{}, len(allComicStates))
	for _, state := range allComicStates {
		set[state] = struct{}{}
	}
	return set
}()

// Comic is the aggregate root for one archive file. It exclusively owns its
// ordered page sequence; pages never outlive their comic.
type Comic struct {
	ID                   int64
	Filename             string
	Kind                 ArchiveKind
	State                ComicState
	Purging              bool
	BatchScrape          bool
	DeletePagesOnRebuild bool
	SourceName           string
	SourceRef            string
	Series               string
	Title                string
	Number               string
	Year                 int
	Pages                []Page
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Page belongs to exactly one comic. Position defines display and processing
// order; the cover is position 0. The back-reference to the owner is an id
// only, never a pointer.
type Page struct {
	ID       int64
	ComicID  int64
	Position int
	Filename string
	Digest   string
	Width    int
	Height   int
	State    PageState
}

// AllComicStates returns the ordered list of known comic states.
func AllComicStates() []ComicState {
	cp := make([]ComicState, len(allComicStates))
	copy(cp, allComicStates)
	return cp
}

// ParseComicState converts a string into a known ComicState.
func ParseComicState(value string) (ComicState, bool) {
	normalized := ComicState(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := comicStateSet[normalized]
	return normalized, ok
}

// ParseArchiveKind converts a string into a known ArchiveKind.
func ParseArchiveKind(value string) ArchiveKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cbz":
		return ArchiveCBZ
	case "cbr":
		return ArchiveCBR
	default:
		return ArchiveUnknown
	}
}

// PageAt returns the page at the given ordinal position.
func (c *Comic) PageAt(position int) (*Page, bool) {
	for i := range c.Pages {
		if c.Pages[i].Position == position {
			return &c.Pages[i], true
		}
	}
	return nil, false
}

// ActivePages returns pages not marked deleted, in position order.
func (c *Comic) ActivePages() []Page {
	active := make([]Page, 0, len(c.Pages))
	for _, page := range c.Pages {
		if page.State != PageDeleted {
			active = append(active, page)
		}
	}
	return active
}

// HasDigests reports whether every page carries a content digest.
func (c *Comic) HasDigests() bool {
	for _, page := range c.Pages {
		if page.Digest == "" {
			return false
		}
	}
	return len(c.Pages) > 0
}

// HasSource reports whether a metadata source reference is attached.
func (c *Comic) HasSource() bool {
	return strings.TrimSpace(c.SourceName) != "" && strings.TrimSpace(c.SourceRef) != ""
}

// BlockedHash is an independent global record marking a page digest as
// disallowed. Many pages may share the digest without owning the record.
type BlockedHash struct {
	Digest    string
	Label     string
	Thumbnail []byte
	CreatedAt time.Time
}

// HealthSummary describes aggregated comic counts per key lifecycle states.
type HealthSummary struct {
	Total       int
	Unprocessed int
	Processing  int
	Stable      int
	Scraped     int
	Purging     int
	Removed     int
}
