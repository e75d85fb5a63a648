// Package state implements the event-driven lifecycle engines for comics and
// pages. Transitions live in fixed tables; registered listeners run
// synchronously in registration order, and only after every listener accepts
// the change does the entity's in-memory state become authoritative.
package state

import (
	"errors"
	"fmt"

	"longbox/internal/library"
)

// ComicEvent names a lifecycle event fired against a comic.
type ComicEvent string

const (
	ComicDetailsUpdated ComicEvent = "detailsUpdated"
	ComicScrapedEvent   ComicEvent = "scraped"
	ComicMarkedForPurge ComicEvent = "markedForPurge"
	ComicPurged         ComicEvent = "purged"
)

// PageEvent names a lifecycle event fired against a page.
type PageEvent string

const (
	PageMarkForDeletion   PageEvent = "markForDeletion"
	PageUnmarkForDeletion PageEvent = "unmarkForDeletion"
)

// ErrInvalidTransition is returned when an event is not legal in the
// entity's current state. The policy is consistent: illegal combinations are
// always rejected, never silently ignored.
var ErrInvalidTransition = errors.New("invalid state transition")

type comicKey struct {
	state library.ComicState
	event ComicEvent
}

type pageKey struct {
	state library.PageState
	event PageEvent
}

var comicTransitions = map[comicKey]library.ComicState{
	{library.ComicUnprocessed, ComicDetailsUpdated}: library.ComicProcessing,
	{library.ComicProcessing, ComicDetailsUpdated}:  library.ComicStable,
	{library.ComicStable, ComicDetailsUpdated}:      library.ComicStable,
	{library.ComicScraped, ComicDetailsUpdated}:     library.ComicStable,

	{library.ComicStable, ComicScrapedEvent}:  library.ComicScraped,
	{library.ComicScraped, ComicScrapedEvent}: library.ComicScraped,

	{library.ComicUnprocessed, ComicMarkedForPurge}: library.ComicPurging,
	{library.ComicProcessing, ComicMarkedForPurge}:  library.ComicPurging,
	{library.ComicStable, ComicMarkedForPurge}:      library.ComicPurging,
	{library.ComicScraped, ComicMarkedForPurge}:     library.ComicPurging,

	{library.ComicPurging, ComicPurged}: library.ComicRemoved,
}

var pageTransitions = map[pageKey]library.PageState{
	{library.PageStable, PageMarkForDeletion}:    library.PageDeleted,
	{library.PageDeleted, PageUnmarkForDeletion}: library.PageStable,
}

// NextComicState computes the transition table entry without firing anything.
func NextComicState(current library.ComicState, event ComicEvent) (library.ComicState, error) {
	next, ok := comicTransitions[comicKey{current, event}]
	if !ok {
		return "", fmt.Errorf("%w: comic event %q in state %q", ErrInvalidTransition, event, current)
	}
	return next, nil
}

// NextPageState computes the transition table entry without firing anything.
func NextPageState(current library.PageState, event PageEvent) (library.PageState, error) {
	next, ok := pageTransitions[pageKey{current, event}]
	if !ok {
		return "", fmt.Errorf("%w: page event %q in state %q", ErrInvalidTransition, event, current)
	}
	return next, nil
}
