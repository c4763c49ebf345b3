package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
)

type fakeProcessor struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]error
	block chan struct{}
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	return &pipeline.Result{Record: &entity.EarningsRecord{ID: uuid.New(), WorkerID: opts.WorkerID}}, nil
}

type fakeAuditor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeAuditor) Audit(_ context.Context, req pipeline.AuditRequest) (*entity.AuditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &entity.AuditResult{RecordID: req.RecordID}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	boom := errors.New("boom")
	proc := &fakeProcessor{fail: map[string]error{"b.png": boom}}
	aud := &fakeAuditor{}

	var (
		mu     sync.Mutex
		failed []string
	)
	q := NewProcessorQueue(proc, quiet(),
		WithWorkers(2),
		WithQueueSize(4),
		WithAutoAudit(aud),
		WithResultHook(func(job Job, _ *pipeline.Result, err error) {
			if err != nil {
				mu.Lock()
				failed = append(failed, job.Path)
				mu.Unlock()
			}
		}),
	)

	for _, p := range []string{"a.png", "b.png", "c.pdf"} {
		if err := q.Enqueue(context.Background(), Job{Path: p, WorkerID: "w"}); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	if len(proc.paths) != 3 {
		t.Errorf("processed %d jobs, want 3", len(proc.paths))
	}
	if aud.calls != 2 {
		t.Errorf("audits = %d, want 2", aud.calls)
	}
	if len(failed) != 1 || failed[0] != "b.png" {
		t.Errorf("failed = %v", failed)
	}
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, quiet(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background()) // second call is a no-op

	if err := q.Enqueue(context.Background(), Job{Path: "x.png"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestProcessorQueue_BackpressureHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewProcessorQueue(&fakeProcessor{block: block}, quiet(), WithWorkers(1), WithQueueSize(1))

	// the worker takes the first job and blocks; the second fills the buffer
	if err := q.Enqueue(context.Background(), Job{Path: "1.png"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(q.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := q.Enqueue(context.Background(), Job{Path: "2.png"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{Path: "3.png"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(block)
	q.Shutdown(context.Background())
}
