package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/extract"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/fairness"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

// Options identify who submitted a statement and, optionally, for which platform.
type Options struct {
	WorkerID string
	Platform string
}

// Result is what processing a statement produced.
type Result struct {
	Record     *entity.EarningsRecord
	Duplicate  bool // an identical statement from this worker was already stored
	Extraction extract.Metadata
}

// Processor coordinates text acquisition, field parsing, storage and audits.
type Processor struct {
	Logger    *slog.Logger
	Store     *repository.Store
	Extractor extract.TextExtractor
	Parser    *parser.Parser
	Engine    *fairness.Engine
}

func NewProcessor(logger *slog.Logger, store *repository.Store, tx extract.TextExtractor, p *parser.Parser, engine *fairness.Engine) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Store: store, Extractor: tx, Parser: p, Engine: engine}
}

// ProcessFile extracts text from a statement file, parses it and stores the record.
// A file this worker already submitted returns the stored record with Duplicate set.
func (p *Processor) ProcessFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	if !constants.IsAllowedExt(ext) {
		return nil, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported file type %q", ext), common.ErrUnsupported)
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NotFoundf("file %s", path)
		}
		return nil, err
	}
	if st.Size() > constants.MaxUploadBytes {
		return nil, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("%s exceeds %d bytes", filepath.Base(path), constants.MaxUploadBytes), common.ErrTooLarge)
	}

	sum, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	ctx = common.WithWorkerID(ctx, opts.WorkerID)
	ctx = common.WithContentHash(ctx, hex.EncodeToString(sum))

	if dup, err := p.findDuplicate(ctx, opts.WorkerID, sum); err != nil || dup != nil {
		return dup, err
	}
	if _, err := p.Store.Workers.Ensure(ctx, opts.WorkerID, ""); err != nil {
		return nil, err
	}

	format := constants.MapExtToFormat(ext)
	res, err := p.Extractor.Extract(ctx, path)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "path", path, "worker_id", opts.WorkerID, "err", err)
		// no content hash, so a retry of the same file is not deduplicated against the failure
		failed := &entity.EarningsRecord{
			WorkerID:     opts.WorkerID,
			Platform:     resolvePlatform(opts.Platform, nil),
			Source:       path,
			SourceType:   format,
			Parsed:       entity.NewParsedEarnings(""),
			Status:       constants.RecordStatusFailed,
			ErrorMessage: err.Error(),
		}
		if _, serr := p.Store.Records.Create(ctx, failed); serr != nil {
			p.Logger.Error("processor.record.failed_not_stored", "path", path, "err", serr)
		}
		return nil, err
	}
	p.Logger.Info("processor.ocr.ok",
		"path", path,
		"provider", res.Metadata.Provider,
		"method", res.Metadata.Method,
		"pages", res.Metadata.Pages,
		"confidence", res.Metadata.Confidence,
	)
	if format == constants.IMAGE && res.Metadata.Confidence > 0 && res.Metadata.Confidence < ocr.ImageConfidenceThreshold {
		p.Logger.Warn("processor.ocr.low_confidence", "path", path, "conf", res.Metadata.Confidence)
	}

	rec := &entity.EarningsRecord{
		WorkerID:      opts.WorkerID,
		Source:        path,
		SourceType:    format,
		ContentHash:   sum,
		OCRMethod:     res.Metadata.Method,
		OCRConfidence: res.Metadata.Confidence,
	}
	out, err := p.parseAndStore(ctx, rec, res.Text, opts)
	if err != nil {
		return p.concurrentDuplicate(ctx, opts.WorkerID, sum, err)
	}
	return &Result{Record: out, Extraction: res.Metadata}, nil
}

// ProcessText parses statement text that is already available.
func (p *Processor) ProcessText(ctx context.Context, text string, opts Options) (*Result, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, common.InvalidInputf("statement text is empty")
	}
	text = ocr.Normalize(text)
	h := sha256.Sum256([]byte(text))
	sum := h[:]
	ctx = common.WithWorkerID(ctx, opts.WorkerID)
	ctx = common.WithContentHash(ctx, hex.EncodeToString(sum))

	if dup, err := p.findDuplicate(ctx, opts.WorkerID, sum); err != nil || dup != nil {
		return dup, err
	}
	if _, err := p.Store.Workers.Ensure(ctx, opts.WorkerID, ""); err != nil {
		return nil, err
	}

	rec := &entity.EarningsRecord{
		WorkerID:      opts.WorkerID,
		Source:        "text",
		SourceType:    constants.TXT,
		ContentHash:   sum,
		OCRMethod:     "text",
		OCRConfidence: 1,
	}
	out, err := p.parseAndStore(ctx, rec, text, opts)
	if err != nil {
		return p.concurrentDuplicate(ctx, opts.WorkerID, sum, err)
	}
	return &Result{Record: out, Extraction: extract.Metadata{Provider: "text", SourceType: constants.TXT, Method: "text", Pages: 1, Confidence: 1}}, nil
}

func (p *Processor) parseAndStore(ctx context.Context, rec *entity.EarningsRecord, text string, opts Options) (*entity.EarningsRecord, error) {
	parsed := p.Parser.Parse(ctx, text, parser.Context{Platform: opts.Platform})
	parsed.RawText = truncateRunes(parsed.RawText, constants.MaxStoredRawText)

	rec.Platform = resolvePlatform(opts.Platform, parsed.Platform)
	rec.RawText = parsed.RawText
	rec.Parsed = parsed
	rec.Status = constants.RecordStatusParsed

	out, err := p.Store.Records.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("processor.parse.ok",
		"record_id", out.ID,
		"worker_id", out.WorkerID,
		"platform", out.Platform,
		"total_estimated", parsed.TotalEstimated,
		"penalties", len(parsed.Penalties),
	)
	return out, nil
}

// concurrentDuplicate resolves a store error caused by the same content being
// stored for the worker between findDuplicate and the insert.
func (p *Processor) concurrentDuplicate(ctx context.Context, workerID string, sum []byte, storeErr error) (*Result, error) {
	if !errors.Is(storeErr, common.ErrConflict) {
		return nil, storeErr
	}
	dup, err := p.findDuplicate(ctx, workerID, sum)
	if err != nil {
		return nil, err
	}
	if dup == nil {
		return nil, storeErr
	}
	return dup, nil
}

func (p *Processor) findDuplicate(ctx context.Context, workerID string, sum []byte) (*Result, error) {
	existing, err := p.Store.Records.GetByHash(ctx, workerID, sum)
	switch {
	case err == nil:
		hash, _ := common.ContentHashFromContext(ctx)
		p.Logger.Info("processor.dedup", "record_id", existing.ID, "worker_id", workerID, "content_hash", hash)
		return &Result{
			Record:    existing,
			Duplicate: true,
			Extraction: extract.Metadata{
				SourceType: existing.SourceType,
				Method:     existing.OCRMethod,
				Confidence: existing.OCRConfidence,
			},
		}, nil
	case errors.Is(err, common.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

func validateOptions(opts Options) error {
	return common.NewValidator().
		Field("worker_id", opts.WorkerID, common.Required, common.MaxLength(64)).
		Field("platform", opts.Platform, common.MaxLength(64)).
		Err()
}

// resolvePlatform prefers the caller's platform, then the statement's, and
// falls back to "other". Known platforms are stored by their canonical name.
func resolvePlatform(hint string, parsed *string) string {
	for _, candidate := range []string{hint, deref(parsed)} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if pl, ok := constants.CanonicalizePlatform(candidate); ok {
			return string(pl)
		}
		return strings.ToLower(strings.TrimSpace(candidate))
	}
	return string(constants.Other)
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
