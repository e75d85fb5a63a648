// Package pipeline implements the staged batch execution model: a Reader
// produces items, an ordered chain of Processors transforms or drops them,
// and a Writer commits each surviving batch transactionally. A run tracks
// recoverable per-item failures against an error threshold; crossing it trips
// a circuit breaker that stops future expensive work while letting batches
// complete mechanically.
package pipeline

import (
	"context"

	"longbox/internal/library"
)

// Reader produces the bounded sequence of items a run operates on.
type Reader interface {
	Name() string
	Read(ctx context.Context, run *Run) ([]*library.Comic, error)
}

// Processor handles one item at a time. It must not assume any ordering
// across items, and it reports its result as an explicit Outcome rather than
// using errors for expected per-item decisions.
type Processor interface {
	Name() string
	Process(ctx context.Context, run *Run, comic *library.Comic) Outcome
}

// Writer durably commits a batch of surviving items, all-or-nothing.
type Writer interface {
	Name() string
	Write(ctx context.Context, run *Run, comics []*library.Comic) error
}

// Pipeline is a named, ordered list of stages.
type Pipeline struct {
	Name       string
	Reader     Reader
	Processors []Processor
	Writer     Writer
}
