package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseFromStdin(t *testing.T) {
	out, err := run(t, ocr.DemoStatementText, "parse", "-")
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	var got entity.ParsedEarnings
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Total == nil || !got.Total.Equal(decimal.NewFromInt(420)) {
		t.Errorf("total = %v", got.Total)
	}
}

func TestSeedProcessAndExport(t *testing.T) {
	dir := t.TempDir()
	db := "file:" + filepath.Join(dir, "cli.db") + "?_pragma=foreign_keys(1)"
	common := []string{"--db-driver", "sqlite", "--db-url", db, "--ocr-provider", "demo"}

	out, err := run(t, "", append([]string{"seed", "--workers", "w-1"}, common...)...)
	if err != nil {
		t.Fatalf("seed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "w-1: record") {
		t.Errorf("seed output = %q", out)
	}
	out, err = run(t, "", append([]string{"seed", "--workers", "w-1"}, common...)...)
	if err != nil || !strings.Contains(out, "already seeded") {
		t.Errorf("second seed: %v %q", err, out)
	}

	stmt := filepath.Join(dir, "week.png")
	if err := os.WriteFile(stmt, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "", append([]string{"process", stmt, "--worker", "w-2", "--audit"}, common...)...)
	if err != nil {
		t.Fatalf("process: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"audit"`) {
		t.Errorf("process output has no audit: %s", out)
	}

	xlsx := filepath.Join(dir, "out", "report.xlsx")
	out, err = run(t, "", append([]string{"export", "-o", xlsx}, common...)...)
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if st, err := os.Stat(xlsx); err != nil || st.Size() == 0 {
		t.Errorf("export file: %v", err)
	}
}

func TestAuditFlagsAreExclusive(t *testing.T) {
	if _, err := run(t, "", "audit"); err == nil {
		t.Error("audit without --record or --parsed should fail")
	}
	if _, err := run(t, "", "audit", "--record", "x", "--parsed", "y"); err == nil {
		t.Error("--record with --parsed should fail")
	}
}
