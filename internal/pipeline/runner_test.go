package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/services"
)

type stubReader struct {
	items []*library.Comic
	err   error
}

func (r *stubReader) Name() string { return "stub_reader" }

func (r *stubReader) Read(context.Context, *Run) ([]*library.Comic, error) {
	return r.items, r.err
}

type funcProcessor struct {
	name string
	fn   func(ctx context.Context, run *Run, comic *library.Comic) Outcome
}

func (p *funcProcessor) Name() string { return p.name }

func (p *funcProcessor) Process(ctx context.Context, run *Run, comic *library.Comic) Outcome {
	return p.fn(ctx, run, comic)
}

type collectWriter struct {
	batches [][]*library.Comic
	err     error
}

func (w *collectWriter) Name() string { return "collect" }

func (w *collectWriter) Write(_ context.Context, _ *Run, comics []*library.Comic) error {
	if w.err != nil {
		return w.err
	}
	batch := make([]*library.Comic, len(comics))
	copy(batch, comics)
	w.batches = append(w.batches, batch)
	return nil
}

func makeItems(n int) []*library.Comic {
	items := make([]*library.Comic, n)
	for i := range items {
		items[i] = &library.Comic{ID: int64(i + 1), Filename: fmt.Sprintf("/import/%d.cbz", i+1)}
	}
	return items
}

func TestExecuteCommitsAllBatches(t *testing.T) {
	writer := &collectWriter{}
	p := Pipeline{
		Name:   "test",
		Reader: &stubReader{items: makeItems(5)},
		Processors: []Processor{
			&funcProcessor{name: "pass", fn: func(_ context.Context, _ *Run, c *library.Comic) Outcome {
				return Continue(c)
			}},
		},
		Writer: writer,
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 10, BatchSize: 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != StatusSucceeded {
		t.Fatalf("status = %s, want %s", report.Status, StatusSucceeded)
	}
	if report.Processed != 5 || report.Written != 5 {
		t.Fatalf("processed=%d written=%d, want 5/5", report.Processed, report.Written)
	}
	if len(writer.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(writer.batches))
	}
}

func TestExecuteDropRemovesItemWithoutFailing(t *testing.T) {
	writer := &collectWriter{}
	p := Pipeline{
		Name:   "test",
		Reader: &stubReader{items: makeItems(3)},
		Processors: []Processor{
			&funcProcessor{name: "drop_second", fn: func(_ context.Context, _ *Run, c *library.Comic) Outcome {
				if c.ID == 2 {
					return Drop()
				}
				return Continue(c)
			}},
		},
		Writer: writer,
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 10, BatchSize: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", report.Status)
	}
	if report.Dropped != 1 || report.Skipped != 0 || report.Written != 2 {
		t.Fatalf("dropped=%d skipped=%d written=%d, want 1/0/2", report.Dropped, report.Skipped, report.Written)
	}
}

// Three recoverable failures with a threshold of three trip the breaker at
// the fourth item; the fifth is carried through untouched, with no expensive
// attempt recorded, and the run finishes failed with earlier work committed.
func TestExecuteCircuitBreakerShortCircuitsRemainingWork(t *testing.T) {
	attempts := make(map[int64]int)
	writer := &collectWriter{}
	p := Pipeline{
		Name:   "scrape",
		Reader: &stubReader{items: makeItems(5)},
		Processors: []Processor{
			&funcProcessor{name: "remote", fn: func(_ context.Context, run *Run, c *library.Comic) Outcome {
				if run.Broken() {
					return Continue(c)
				}
				attempts[c.ID]++
				if c.ID >= 2 && c.ID <= 4 {
					return Failed(errors.New("metadata source unreachable"))
				}
				return Continue(c)
			}},
		},
		Writer: writer,
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 3, BatchSize: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if report.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if report.Skipped != 3 {
		t.Fatalf("skipped = %d, want 3", report.Skipped)
	}
	if got := attempts[5]; got != 0 {
		t.Fatalf("item 5 saw %d attempts, want 0", got)
	}
	for id := int64(1); id <= 4; id++ {
		if attempts[id] != 1 {
			t.Fatalf("item %d saw %d attempts, want 1", id, attempts[id])
		}
	}
	// Every batch still committed: failed items continue unchanged and the
	// breaker never rolls back completed work.
	if report.Written != 5 {
		t.Fatalf("written = %d, want 5", report.Written)
	}
	if len(writer.batches) != 5 {
		t.Fatalf("committed batches = %d, want 5", len(writer.batches))
	}
}

func TestExecuteWriterFailurePreservesEarlierBatches(t *testing.T) {
	calls := 0
	writer := &failAfterWriter{failOn: 2}
	p := Pipeline{
		Name:   "test",
		Reader: &stubReader{items: makeItems(4)},
		Processors: []Processor{
			&funcProcessor{name: "count", fn: func(_ context.Context, _ *Run, c *library.Comic) Outcome {
				calls++
				return Continue(c)
			}},
		},
		Writer: writer,
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 10, BatchSize: 2})
	if err == nil {
		t.Fatal("expected writer error")
	}
	if report.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if report.Written != 2 {
		t.Fatalf("written = %d, want 2 (first batch only)", report.Written)
	}
	if calls != 4 {
		t.Fatalf("processor calls = %d, want 4", calls)
	}
}

type failAfterWriter struct {
	failOn int
	calls  int
}

func (w *failAfterWriter) Name() string { return "fail_after" }

func (w *failAfterWriter) Write(_ context.Context, _ *Run, comics []*library.Comic) error {
	w.calls++
	if w.calls >= w.failOn {
		return errors.New("commit failed")
	}
	return nil
}

// A validation failure will not succeed on a later run, so the item is
// dropped from the batch rather than skipped and retried forever.
func TestExecutePermanentFailureDropsItem(t *testing.T) {
	writer := &collectWriter{}
	p := Pipeline{
		Name:   "test",
		Reader: &stubReader{items: makeItems(3)},
		Processors: []Processor{
			&funcProcessor{name: "validate", fn: func(_ context.Context, _ *Run, c *library.Comic) Outcome {
				if c.ID == 2 {
					return Failed(services.Wrap(services.ErrValidation, "validate", "check_archive", "no pages", nil))
				}
				return Continue(c)
			}},
		},
		Writer: writer,
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 10, BatchSize: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", report.Status)
	}
	if report.Dropped != 1 || report.Skipped != 0 || report.Written != 2 {
		t.Fatalf("dropped=%d skipped=%d written=%d, want 1/0/2", report.Dropped, report.Skipped, report.Written)
	}
}

func TestExecuteRecoversProcessorPanic(t *testing.T) {
	p := Pipeline{
		Name:   "test",
		Reader: &stubReader{items: makeItems(2)},
		Processors: []Processor{
			&funcProcessor{name: "panicky", fn: func(_ context.Context, _ *Run, c *library.Comic) Outcome {
				if c.ID == 1 {
					panic("bad page data")
				}
				return Continue(c)
			}},
		},
		Writer: &collectWriter{},
	}

	runner := NewRunner(logging.NewNop(), nil)
	report, err := runner.Execute(context.Background(), p, Params{ErrorThreshold: 10, BatchSize: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1 (recovered panic)", report.Skipped)
	}
	if report.Written != 2 {
		t.Fatalf("written = %d, want 2 (fail-open keeps the item)", report.Written)
	}
}

func TestRegistryRunRecordsHistoryAndRejectsUnknown(t *testing.T) {
	runner := NewRunner(logging.NewNop(), nil)
	reg := NewRegistry(runner)
	reg.Register(Pipeline{
		Name:   "noop",
		Reader: &stubReader{},
		Writer: &collectWriter{},
	})

	if _, err := reg.Run(context.Background(), "missing", Params{ErrorThreshold: 1}); err == nil {
		t.Fatal("expected error for unknown pipeline")
	}

	report, err := reg.Run(context.Background(), "noop", Params{ErrorThreshold: 1, BatchSize: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", report.Status)
	}

	history := reg.History()
	if len(history) != 1 || history[0].Pipeline != "noop" {
		t.Fatalf("unexpected history %+v", history)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "noop" {
		t.Fatalf("unexpected names %v", names)
	}
}
