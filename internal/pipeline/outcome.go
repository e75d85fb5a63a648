package pipeline

import "longbox/internal/library"

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeDrop
	outcomeFailed
)

// Outcome is a processor's per-item result. Dropping an item removes it from
// the batch without failing the run; a failed outcome counts toward the
// run's skip total while the item continues unchanged (fail-open).
type Outcome struct {
	kind  outcomeKind
	comic *library.Comic
	err   error
}

// Continue passes the (possibly transformed) item to the next stage.
func Continue(comic *library.Comic) Outcome {
	return Outcome{kind: outcomeContinue, comic: comic}
}

// Drop removes the item from the batch. This is a normal decision, not a
// failure, and does not touch the skip count.
func Drop() Outcome {
	return Outcome{kind: outcomeDrop}
}

// Failed reports a recoverable per-item failure. The runner logs it, counts
// it toward the error threshold, and carries the item forward unchanged.
func Failed(err error) Outcome {
	return Outcome{kind: outcomeFailed, err: err}
}

// IsDrop reports whether the outcome removes the item from the batch.
func (o Outcome) IsDrop() bool { return o.kind == outcomeDrop }

// IsFailed reports whether the outcome is a recoverable failure.
func (o Outcome) IsFailed() bool { return o.kind == outcomeFailed }

// Comic returns the item carried by a continue outcome.
func (o Outcome) Comic() *library.Comic { return o.comic }

// Err returns the failure carried by a failed outcome.
func (o Outcome) Err() error { return o.err }
