package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/notifications"
	"longbox/internal/services"
)

// Runner executes pipelines over bounded batches.
type Runner struct {
	logger   *slog.Logger
	notifier notifications.Service
}

// NewRunner constructs a pipeline runner.
func NewRunner(logger *slog.Logger, notifier notifications.Service) *Runner {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Runner{
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		notifier: notifier,
	}
}

// Execute runs every stage of p over the items its reader produces and
// returns the run report. Already-committed batches stay committed no matter
// how the run ends; a tripped breaker or writer failure yields a failed
// terminal status, never a rollback of earlier batches.
func (r *Runner) Execute(ctx context.Context, p Pipeline, params Params) (Report, error) {
	run := newRun(uuid.NewString(), p.Name, params)
	ctx = services.WithPipeline(ctx, p.Name)
	ctx = services.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, r.logger)

	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("error_threshold", params.ErrorThreshold),
		logging.Int("batch_size", params.BatchSize))

	r.notifier.PublishRunStarted(ctx, p.Name, run.ID)

	items, err := p.Reader.Read(ctx, run)
	if err != nil {
		report := r.finish(ctx, run, StatusFailed, fmt.Errorf("reader %s: %w", p.Reader.Name(), err))
		return report, err
	}

	batchSize := params.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	var writeErr error
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		survivors := items[start:end:end]
		committed, err := r.runBatch(ctx, p, run, survivors)
		if err != nil {
			writeErr = err
			break
		}
		run.recordWritten(committed)
	}

	status := StatusSucceeded
	if run.Broken() || writeErr != nil {
		status = StatusFailed
	}
	report := r.finish(ctx, run, status, writeErr)
	return report, writeErr
}

// runBatch pushes one batch through the processor chain and commits the
// survivors. Returns the number of committed items.
func (r *Runner) runBatch(ctx context.Context, p Pipeline, run *Run, items []*library.Comic) (int, error) {
	survivors := make([]*library.Comic, 0, len(items))

	for _, item := range items {
		itemCtx := services.WithComicID(ctx, item.ID)
		dropped := false

		for _, proc := range p.Processors {
			stageCtx := services.WithStage(itemCtx, proc.Name())
			outcome := r.processOne(stageCtx, proc, run, item)

			if outcome.IsDrop() {
				dropped = true
				break
			}
			if outcome.IsFailed() {
				if !services.IsRecoverable(outcome.Err()) {
					// Permanent failures will not succeed on retry, so the
					// item leaves the batch instead of padding the skip count.
					logging.WithContext(stageCtx, r.logger).Warn("item dropped",
						logging.String(logging.FieldEventType, "item_dropped"),
						logging.Error(outcome.Err()))
					dropped = true
					break
				}
				run.RecordSkip()
				logging.WithContext(stageCtx, r.logger).Warn("item skipped",
					logging.String(logging.FieldEventType, "item_skipped"),
					logging.Error(outcome.Err()))
				// Fail-open: the item continues unchanged.
				continue
			}
			if next := outcome.Comic(); next != nil {
				item = next
			}
		}

		run.recordProcessed()
		if dropped {
			run.recordDropped()
			continue
		}
		survivors = append(survivors, item)
	}

	if len(survivors) == 0 {
		return 0, nil
	}
	if err := p.Writer.Write(ctx, run, survivors); err != nil {
		return 0, fmt.Errorf("writer %s: %w", p.Writer.Name(), err)
	}
	return len(survivors), nil
}

// processOne guards a single processor invocation: an unexpected panic is
// recovered and reported as a recoverable failure so one bad item cannot
// take down the run.
func (r *Runner) processOne(ctx context.Context, proc Processor, run *Run, item *library.Comic) (outcome Outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = Failed(fmt.Errorf("processor %s panicked: %v", proc.Name(), recovered))
		}
	}()
	return proc.Process(ctx, run, item)
}

func (r *Runner) finish(ctx context.Context, run *Run, status Status, err error) Report {
	processed, skipped, dropped, written := run.counts()
	report := Report{
		RunID:     run.ID,
		Pipeline:  run.Pipeline,
		Status:    status,
		Processed: processed,
		Skipped:   skipped,
		Dropped:   dropped,
		Written:   written,
		Started:   run.Started,
		Finished:  time.Now(),
	}
	if err != nil {
		report.Error = err.Error()
	} else if status == StatusFailed {
		report.Error = fmt.Sprintf("error threshold reached after %d skipped items", skipped)
	}

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("pipeline run finished",
		logging.String(logging.FieldEventType, "run_finish"),
		logging.String("status", string(status)),
		logging.Int("processed", processed),
		logging.Int("skipped", skipped),
		logging.Int("dropped", dropped),
		logging.Int("written", written),
		logging.Duration("duration", report.Duration()))

	r.notifier.PublishRunFinished(ctx, report.Pipeline, report.RunID, string(status), processed, skipped)
	return report
}
