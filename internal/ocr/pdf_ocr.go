package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
)

// extractPDF prefers the embedded text layer and rasterizes only when it is empty.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	txt, pages, warn, err := e.pdfToText(ctx, path)
	if err == nil {
		if norm := Normalize(txt); norm != "" {
			return ExtractionResult{
				Text:       norm,
				Pages:      pages,
				SourceType: constants.PDF,
				Method:     "pdf-text",
				Warnings:   warn,
				Confidence: heuristicConfidence(norm),
			}, nil
		}
		warn = append(warn, "pdf has no text layer; falling back to ocr")
	} else {
		warn = append(warn, "pdftotext failed: "+err.Error())
	}

	txt, pages, w2, err := e.pdfToOCR(ctx, path)
	warn = append(warn, w2...)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF, Warnings: warn}, err
	}
	norm := Normalize(txt)
	return ExtractionResult{
		Text:       norm,
		Pages:      pages,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
		Confidence: heuristicConfidence(norm),
	}, nil
}

// pdftotext -layout -enc UTF-8 -eol unix <path> -
func (e *Extractor) pdfToText(ctx context.Context, path string) (string, int, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text := string(out)
	// form feed separates pages
	return text, 1 + strings.Count(strings.TrimRight(text, "\f"), "\f"), nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	tmpDir, err := os.MkdirTemp("", "gea-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), warns, nil
}
