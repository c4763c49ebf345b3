package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: statement file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Metadata Metadata
}

// Metadata describes how the text was obtained.
type Metadata struct {
	Provider   string // "tesseract" | "vision" | "demo"
	SourceType string // "PDF" | "IMAGE" | "TXT"
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "text-file" | "vision" | "demo"
	Pages      int
	Language   string
	Confidence float32
	Duration   time.Duration
	Warnings   []string
}
