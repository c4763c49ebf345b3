package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
)

type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	return TextExtractionResult{
		Text: r.Text,
		Metadata: Metadata{
			Provider:   "tesseract",
			SourceType: r.SourceType,
			Method:     r.Method,
			Pages:      r.Pages,
			Language:   r.Language,
			Confidence: r.Confidence,
			Duration:   r.Duration,
			Warnings:   r.Warnings,
		},
	}, err
}
