package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract(context.Context, string) (TextExtractionResult, error) {
	return TextExtractionResult{}, f.err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOCRAdapter_TextFile(t *testing.T) {
	p := writeFile(t, "s.txt", "Platform: Uber\r\nTotal: 100\r\n")
	a := NewOCRAdapter(ocr.NewExtractor(ocr.Config{}, nil), nil)

	res, err := a.Extract(context.Background(), p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Platform: Uber\nTotal: 100" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Metadata.Provider != "tesseract" || res.Metadata.Method != "text-file" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestVisionAdapter_ImageOnly(t *testing.T) {
	ft := &fakeTranscriber{text: "Total:\t 50\r\n"}
	a := NewVisionAdapter(ft, nil)

	res, err := a.Extract(context.Background(), "shot.PNG")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Total: 50" || res.Metadata.Method != "vision" {
		t.Errorf("res = %+v", res)
	}

	_, err = a.Extract(context.Background(), "statement.pdf")
	if !errors.Is(err, common.ErrUnsupported) {
		t.Errorf("pdf err = %v, want ErrUnsupported", err)
	}
	if ft.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", ft.calls)
	}
}

func TestDemoAdapter(t *testing.T) {
	res, err := DemoAdapter{}.Extract(context.Background(), "anything.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != ocr.DemoStatementText {
		t.Errorf("demo text mismatch")
	}
	if len(res.Metadata.Warnings) == 0 {
		t.Errorf("expected a warning on demo output")
	}
}

func TestFallback(t *testing.T) {
	first := failingExtractor{err: errors.New("vision down")}
	f := NewFallback(nil, first, DemoAdapter{})

	res, err := f.Extract(context.Background(), "x.png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Metadata.Provider != "demo" {
		t.Errorf("provider = %q", res.Metadata.Provider)
	}
	if len(res.Metadata.Warnings) < 2 || !strings.Contains(res.Metadata.Warnings[0], "vision down") {
		t.Errorf("warnings = %v", res.Metadata.Warnings)
	}

	all := NewFallback(nil, failingExtractor{err: errors.New("a")}, failingExtractor{err: errors.New("b")})
	if _, err := all.Extract(context.Background(), "x.png"); err == nil || err.Error() != "b" {
		t.Errorf("err = %v, want last error", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	e := ocr.NewExtractor(ocr.Config{}, nil)
	ft := &fakeTranscriber{text: "x"}

	tests := []struct {
		provider string
		t        *fakeTranscriber
		wantType string
		wantErr  bool
	}{
		{"tesseract", ft, "*extract.OCRAdapter", false},
		{"demo", nil, "extract.DemoAdapter", false},
		{"auto", nil, "*extract.OCRAdapter", false},
		{"auto", ft, "*extract.Fallback", false},
		{"vision", ft, "*extract.Fallback", false},
		{"vision", nil, "", true},
		{"paper", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			var tr llm.Transcriber
			if tt.t != nil {
				tr = tt.t
			}
			got, err := NewFromConfig(tt.provider, e, tr, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if typ := typeName(got); typ != tt.wantType {
				t.Errorf("type = %s, want %s", typ, tt.wantType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *OCRAdapter:
		return "*extract.OCRAdapter"
	case DemoAdapter:
		return "extract.DemoAdapter"
	case *Fallback:
		return "*extract.Fallback"
	}
	return "?"
}
