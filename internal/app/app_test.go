package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/extract"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_API_KEY", "")
	cfg := common.LoadConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "app.db") + "?_pragma=foreign_keys(1)"
	cfg.OCR.Provider = "demo"
	cfg.Audit.BaselinesPath = ""
	return cfg
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WiresDemoStack(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Parser.RefinementEnabled() {
		t.Error("refinement enabled without a credential")
	}
	if _, ok := a.Extractor.(extract.DemoAdapter); !ok {
		t.Errorf("extractor = %T, want DemoAdapter", a.Extractor)
	}
	if err := a.DB.HealthCheck(context.Background(), 0); err != nil {
		t.Errorf("health: %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Provider = "vision"
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestNewEngine_Baselines(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg.Audit.BaselinesPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewEngine(cfg, logger); err == nil {
		t.Error("expected an error for a missing baselines file")
	}

	path := filepath.Join(t.TempDir(), "baselines.yaml")
	if err := os.WriteFile(path, []byte("defaults:\n  max_penalty_ratio: 0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Audit.BaselinesPath = path
	if _, err := NewEngine(cfg, logger); err != nil {
		t.Errorf("NewEngine: %v", err)
	}
}
