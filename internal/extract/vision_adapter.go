package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
)

// VisionAdapter transcribes screenshots with a vision model. It only accepts images.
type VisionAdapter struct {
	t      llm.Transcriber
	logger *slog.Logger
}

func NewVisionAdapter(t llm.Transcriber, logger *slog.Logger) *VisionAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionAdapter{t: t, logger: logger}
}

func (a *VisionAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	if constants.MapExtToFormat(filepath.Ext(path)) != constants.IMAGE {
		return TextExtractionResult{}, common.NewAppError("UNSUPPORTED_FILE",
			fmt.Sprintf("vision transcription needs an image, got %q", filepath.Ext(path)), common.ErrUnsupported)
	}
	text, err := a.t.Transcribe(ctx, path)
	if err != nil {
		return TextExtractionResult{}, err
	}
	text = ocr.Normalize(text)
	return TextExtractionResult{
		Text: text,
		Metadata: Metadata{
			Provider:   "vision",
			SourceType: constants.IMAGE,
			Method:     "vision",
			Pages:      1,
			Confidence: 1,
			Duration:   time.Since(start),
		},
	}, nil
}

// DemoAdapter ignores its input and returns a fixed statement.
type DemoAdapter struct{}

func (DemoAdapter) Extract(_ context.Context, path string) (TextExtractionResult, error) {
	return TextExtractionResult{
		Text: ocr.DemoStatementText,
		Metadata: Metadata{
			Provider:   "demo",
			SourceType: constants.MapExtToFormat(filepath.Ext(path)),
			Method:     "demo",
			Pages:      1,
			Confidence: 1,
			Warnings:   []string{"demo provider: text is not read from the file"},
		},
	}, nil
}

// Fallback tries each extractor in order and returns the first success.
type Fallback struct {
	chain  []TextExtractor
	logger *slog.Logger
}

func NewFallback(logger *slog.Logger, chain ...TextExtractor) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{chain: chain, logger: logger}
}

func (f *Fallback) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	var warns []string
	var lastErr error
	for i, e := range f.chain {
		res, err := e.Extract(ctx, path)
		if err == nil {
			res.Metadata.Warnings = append(warns, res.Metadata.Warnings...)
			return res, nil
		}
		if ctx.Err() != nil {
			return TextExtractionResult{}, ctx.Err()
		}
		f.logger.Warn("extract.fallback.next", "path", path, "step", i, "error", err)
		warns = append(warns, err.Error())
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no text extractor configured")
	}
	return TextExtractionResult{Metadata: Metadata{Warnings: warns}}, lastErr
}

// NewFromConfig selects a provider: "tesseract", "vision" (images by vision,
// everything else by tesseract), "demo", or "auto" (vision when a transcriber
// is available, tesseract otherwise).
func NewFromConfig(provider string, ocrExtractor *ocr.Extractor, t llm.Transcriber, logger *slog.Logger) (TextExtractor, error) {
	tess := NewOCRAdapter(ocrExtractor, logger)
	switch provider {
	case "tesseract":
		return tess, nil
	case "demo":
		return DemoAdapter{}, nil
	case "vision", "auto", "":
		if t == nil {
			if provider == "vision" {
				return nil, common.NewAppError("CONFIG_ERROR", "vision provider needs a model credential", common.ErrInvalidInput)
			}
			return tess, nil
		}
		return NewFallback(logger, NewVisionAdapter(t, logger), tess), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR provider %q", provider), common.ErrInvalidInput)
	}
}
