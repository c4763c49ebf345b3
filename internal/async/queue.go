package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one statement file waiting to be processed.
type Job struct {
	Path        string
	WorkerID    string
	Platform    string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is the part of pipeline.Processor the queue needs.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

// Auditor runs a fairness audit on a freshly stored record.
type Auditor interface {
	Audit(ctx context.Context, req pipeline.AuditRequest) (*entity.AuditResult, error)
}

// ResultHook observes every finished job.
type ResultHook func(job Job, res *pipeline.Result, err error)

type ProcessorQueue struct {
	proc    FileProcessor
	auditor Auditor
	hook    ResultHook
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithAutoAudit audits every newly stored record right after processing.
func WithAutoAudit(a Auditor) Option {
	return func(q *ProcessorQueue) { q.auditor = a }
}

func WithResultHook(h ResultHook) Option {
	return func(q *ProcessorQueue) { q.hook = h }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
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

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(n int) {
				defer q.wg.Done()
				q.logger.Info("queue worker started", "worker", n)
				for job := range q.ch {
					q.run(n, job)
				}
				q.logger.Info("queue worker stopped", "worker", n)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(n int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res, err := q.proc.ProcessFile(ctx, job.Path, pipeline.Options{WorkerID: job.WorkerID, Platform: job.Platform})
	if err != nil {
		q.logger.Error("processing failed", "worker", n, "path", job.Path, "trace_id", job.TraceID, "error", err)
	} else {
		q.logger.Info("processed statement", "worker", n, "path", job.Path, "record_id", res.Record.ID,
			"duplicate", res.Duplicate, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
		if q.auditor != nil && !res.Duplicate {
			id := res.Record.ID
			if _, aerr := q.auditor.Audit(ctx, pipeline.AuditRequest{RecordID: &id}); aerr != nil {
				q.logger.Error("auto audit failed", "record_id", id, "error", aerr)
			}
		}
	}
	if q.hook != nil {
		q.hook(job, res, err)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued statement for processing", "path", job.Path, "trace_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
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
