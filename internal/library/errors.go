package library

import (
	"errors"
	"fmt"

	"longbox/internal/services"
)

// ErrComicNotFound is returned for lookups against unknown comic identifiers.
var ErrComicNotFound = fmt.Errorf("%w: comic", services.ErrNotFound)

// ErrPageNotFound is returned for lookups against unknown page positions.
var ErrPageNotFound = fmt.Errorf("%w: page", services.ErrNotFound)

// ErrDigestImmutable is returned when a caller attempts to change a digest
// that has already been computed. Recomputation requires an explicit
// content-update call that clears the digest first.
var ErrDigestImmutable = errors.New("page digest is immutable once set")
