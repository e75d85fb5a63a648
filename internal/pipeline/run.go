package pipeline

import (
	"sync"
	"time"
)

// Status is a run's terminal state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run carries the mutable bookkeeping of one pipeline execution: aggregate
// counts and the circuit breaker. Stages receive it alongside the immutable
// parameter set.
type Run struct {
	ID       string
	Pipeline string
	Started  time.Time

	params Params

	mu        sync.Mutex
	processed int
	skipped   int
	dropped   int
	written   int
	broken    bool
}

func newRun(id, pipeline string, params Params) *Run {
	return &Run{
		ID:       id,
		Pipeline: pipeline,
		Started:  time.Now(),
		params:   params,
	}
}

// Params returns the run's immutable parameter set.
func (r *Run) Params() Params {
	return r.params
}

// RecordSkip counts one recoverable per-item failure. Reaching the error
// threshold trips the circuit breaker.
func (r *Run) RecordSkip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
	if r.skipped >= r.params.ErrorThreshold {
		r.broken = true
	}
}

// Broken reports whether the circuit breaker has tripped. Processors doing
// expensive work (remote calls, archive extraction) check this first and
// short-circuit, returning the item unchanged, once the run has failed.
func (r *Run) Broken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broken
}

func (r *Run) recordProcessed() { r.mu.Lock(); r.processed++; r.mu.Unlock() }
func (r *Run) recordDropped() { r.mu.Lock(); r.dropped++; r.mu.Unlock() }
func (r *Run) recordWritten(n int) { r.mu.Lock(); r.written += n; r.mu.Unlock() }

func (r *Run) counts() (processed, skipped, dropped, written int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.skipped, r.dropped, r.written
}

// Report is the user-visible summary of a finished run: aggregate counts and
// terminal status. Individual item failures surface only here and in logs.
type Report struct {
	RunID     string
	Pipeline  string
	Status    Status
	Processed int
	Skipped   int
	Dropped   int
	Written   int
	Started   time.Time
	Finished  time.Time
	Error     string
}

// Duration returns the wall-clock span of the run.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
