package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
)

// Processor is what a batch run drives; *pipeline.Processor satisfies it.
type Processor interface {
	ProcessFile(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
	Audit(ctx context.Context, req pipeline.AuditRequest) (*entity.AuditResult, error)
}

type BatchOptions struct {
	WorkerID   string
	Platform   string
	WorkerDirs bool // take the worker from root/<worker>/..., WorkerID is the fallback
	SkipHidden bool
	Parallel   int  // default 4
	Audit      bool // audit every newly processed record
}

type Batch struct {
	Proc   Processor
	Logger *slog.Logger
}

func NewBatch(proc Processor, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{Proc: proc, Logger: logger}
}

// Run processes every statement file under root. Per-file failures are
// recorded in the results; only cancellation or a walk failure returns an error.
func (b *Batch) Run(ctx context.Context, root string, opts BatchOptions) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var (
		stats   DirStats
		results []FileResult
		files   []string
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowed(path, nil) {
			return nil
		}
		stats.Matched++
		files = append(files, path)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 4
	}
	out := make([]FileResult, len(files))
	var processed, dedup, failed atomic.Uint32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			worker := opts.WorkerID
			if opts.WorkerDirs {
				worker = WorkerFromPath(root, path, opts.WorkerID)
			}
			fr := FileResult{Path: path}
			res, err := b.Proc.ProcessFile(gctx, path, pipeline.Options{WorkerID: worker, Platform: opts.Platform})
			if err != nil {
				b.Logger.Warn("batch.file.failed", "path", path, "error", err)
				fr.Err = err.Error()
				failed.Add(1)
				out[i] = fr
				return nil
			}
			fr.RecordID = res.Record.ID.String()
			fr.Platform = res.Record.Platform
			fr.Deduplicated = res.Duplicate
			processed.Add(1)
			if res.Duplicate {
				dedup.Add(1)
			} else if opts.Audit {
				id := res.Record.ID
				if a, err := b.Proc.Audit(gctx, pipeline.AuditRequest{RecordID: &id}); err != nil {
					b.Logger.Warn("batch.audit.failed", "record_id", id, "error", err)
				} else {
					score := a.FairnessScore
					fr.Score = &score
				}
			}
			out[i] = fr
			return nil
		})
	}
	err = g.Wait()

	stats.Processed = processed.Load()
	stats.Deduplicated = dedup.Load()
	stats.Failed += failed.Load()
	for _, fr := range out {
		if fr.Path != "" {
			results = append(results, fr)
		}
	}
	b.Logger.Info("batch.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"processed", stats.Processed,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, err
	}
	return results, stats, nil
}
