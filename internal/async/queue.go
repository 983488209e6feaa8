package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/clinidocs/fieldmapper/internal/extract"
	"github.com/clinidocs/fieldmapper/internal/processor"
	"github.com/clinidocs/fieldmapper/internal/template"
)

// Job is one document to process against a template.
type Job struct {
	Doc         extract.Document
	Schema      *template.Schema
	SubmittedAt time.Time
}

// ResultFunc receives each finished report. Called from worker goroutines;
// implementations must be safe for concurrent use.
type ResultFunc func(job Job, report *processor.FinalReport)

// BatchQueue fans documents out to a bounded worker pool. Documents have no
// ordering guarantee across workers; shutdown drains the queue and lets
// in-flight pipelines finish. Cancelling the batch context stops new work:
// queued documents are skipped, in-flight ones still run to completion.
type BatchQueue struct {
	coord   *processor.Coordinator
	onDone  ResultFunc
	logger  *slog.Logger
	base    context.Context
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*BatchQueue)

func WithWorkers(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *BatchQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithContext binds the queue to a batch context. Once it is cancelled the
// workers stop starting queued jobs; the document being processed finishes.
func WithContext(ctx context.Context) Option {
	return func(q *BatchQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

func NewBatchQueue(coord *processor.Coordinator, onDone ResultFunc, logger *slog.Logger, opts ...Option) *BatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &BatchQueue{
		coord:   coord,
		onDone:  onDone,
		logger:  logger,
		base:    context.Background(),
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *BatchQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					if q.base.Err() != nil {
						q.logger.Warn("job skipped, batch cancelled", "worker_id", workerID, "path", job.Doc.Path)
						continue
					}
					// jobs run detached from the batch context so a
					// cancellation never aborts a document mid-pipeline
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					report := q.coord.Process(ctx, job.Doc, job.Schema)
					cancel()

					switch {
					case report.Error != nil && !report.Error.Recoverable():
						q.logger.Error("processing failed", "worker_id", workerID, "path", job.Doc.Path, "error", report.Error)
					case report.Error != nil:
						q.logger.Warn("processing degraded", "worker_id", workerID, "path", job.Doc.Path, "error", report.Error)
					default:
						q.logger.Info("processed document", "worker_id", workerID, "path", job.Doc.Path, "valid", report.IsValid())
					}
					for _, c := range report.Unresolved {
						q.logger.Warn("unresolved conflict", "worker_id", workerID, "path", job.Doc.Path,
							"field", c.Field, "kind", c.ErrorKind())
					}
					if q.onDone != nil {
						q.onDone(job, report)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job. A full queue applies backpressure rather than
// dropping; a cancelled context abandons the submission and returns its
// error; after shutdown begins, submissions are ignored.
func (q *BatchQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Doc.Path)
		return nil
	}
	if err := ctx.Err(); err != nil {
		q.logger.Warn("enqueue abandoned, batch cancelled", "path", job.Doc.Path)
		return err
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document", "path", job.Doc.Path)
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Doc.Path)
		select {
		case q.ch <- job:
			q.logger.Info("queued document", "path", job.Doc.Path)
		case <-ctx.Done():
			q.logger.Warn("enqueue abandoned, batch cancelled", "path", job.Doc.Path)
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown closes the queue and waits for the workers to drain it. The
// context bounds the wait; in-flight documents still run to completion.
func (q *BatchQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
