// Package worker drives jobs from PENDING to a terminal state as their tasks
// arrive from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
	"github.com/joseph-ayodele/parivyaya/internal/extract"
	"github.com/joseph-ayodele/parivyaya/internal/queue"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
)

type Worker struct {
	jobs         repository.JobRepository
	extractor    extract.Extractor
	log          *slog.Logger
	now          func() time.Time
	skipTerminal bool
}

type Option func(*Worker)

// WithSkipTerminal drops redelivered tasks whose job already reached COMPLETED or FAILED.
func WithSkipTerminal(skip bool) Option {
	return func(w *Worker) { w.skipTerminal = skip }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func New(jobs repository.JobRepository, extractor extract.Extractor, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		jobs:      jobs,
		extractor: extractor,
		log:       logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Process runs one task to completion. Problems confined to the task are
// logged or recorded on the job and yield nil. A non-nil error means the
// store could not be written and the consumer should stop.
func (w *Worker) Process(ctx context.Context, task queue.Task) error {
	log := w.log.With("task_id", task.ID)

	switch task.Kind {
	case queue.KindExtractRecords:
	default:
		log.Warn("dropping task with unsupported type", "task_type", task.Type)
		return nil
	}
	if !task.HasPayload() {
		log.Warn("dropping task without payload", "task_type", task.Type)
		return nil
	}

	job, err := w.jobs.Get(ctx, task.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("dropping task for unknown job")
			return nil
		}
		log.Error("job lookup failed", "error", err)
		return fmt.Errorf("lookup job %s: %w", task.ID, err)
	}
	if w.skipTerminal && job.Status.Terminal() {
		log.Info("dropping redelivered task for finished job", "status", job.Status)
		return nil
	}

	if err := w.jobs.MarkProcessing(ctx, job.ID, w.now()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("job disappeared before processing started")
			return nil
		}
		log.Error("could not mark job processing", "error", err)
		return fmt.Errorf("mark job %s processing: %w", job.ID, err)
	}

	n, runErr := w.run(ctx, job.ID, task)
	if runErr == nil {
		log.Info("job completed", "job_id", job.ID, "record_count", n)
		return nil
	}

	if err := w.jobs.Fail(ctx, job.ID, runErr.Error(), w.now()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("job disappeared while processing", "cause", runErr)
			return nil
		}
		log.Error("could not record job failure; job left in PROCESSING", "cause", runErr, "error", err)
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	log.Warn("job failed", "job_id", job.ID, "error", runErr)
	return nil
}

// run covers decode, extraction and the completing transaction.
func (w *Worker) run(ctx context.Context, jobID string, task queue.Task) (int, error) {
	document, err := task.Document()
	if err != nil {
		return 0, err
	}
	extracted, err := w.extractor.Extract(ctx, document)
	if err != nil {
		return 0, err
	}
	records := make([]entity.Record, len(extracted))
	for i, r := range extracted {
		records[i] = entity.Record{
			JobID:                  jobID,
			OccurredAt:             r.OccurredAt,
			Label:                  r.Label,
			Value:                  r.Value,
			Unit:                   r.Unit,
			ClassificationPrimary:  r.Primary,
			ClassificationDetailed: r.Detailed,
			ConfidenceLevel:        r.Confidence,
		}
	}
	return w.jobs.Complete(ctx, jobID, records, w.now())
}

// Run consumes sub until ctx is cancelled or the subscription closes. A
// delivery already in hand is processed to the end even after cancellation.
func (w *Worker) Run(ctx context.Context, sub queue.Subscription) error {
	w.log.Info("worker started")
	defer w.log.Info("worker stopped")

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			w.log.Error("receiving task failed", "error", err)
			return fmt.Errorf("next task: %w", err)
		}
		if err := w.handle(context.WithoutCancel(ctx), d); err != nil {
			return err
		}
	}
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) error {
	w.log.Debug("received task",
		"topic", d.Topic,
		"partition", d.Partition,
		"offset", d.Offset,
		"redelivered", d.Redelivered,
	)

	task, err := queue.DecodeTask(d.Data)
	if err != nil {
		w.log.Warn("dropping malformed task", "partition", d.Partition, "offset", d.Offset, "error", err)
		return w.ack(d)
	}
	if err := w.Process(ctx, task); err != nil {
		return err
	}
	return w.ack(d)
}

func (w *Worker) ack(d *queue.Delivery) error {
	if err := d.Ack(); err != nil {
		w.log.Error("ack failed", "partition", d.Partition, "offset", d.Offset, "error", err)
		return fmt.Errorf("ack offset %d: %w", d.Offset, err)
	}
	return nil
}
