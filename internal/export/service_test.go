package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := "file:" + filepath.Join(t.TempDir(), "x.db")
	db, err := repository.Open(context.Background(), repository.Config{Driver: repository.DriverSQLite, DSN: dsn}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return repository.NewStore(db, logger)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

func TestRecordsXLSX(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	audited := entity.NewParsedEarnings("")
	audited.Date, audited.DateISO = str("05/12/25"), nil
	audited.Total = dec("150")
	audited.BasePay = dec("120.5")
	audited.Penalties = []entity.Penalty{
		{Type: str("Late delivery"), Amount: decimal.RequireFromString("5")},
		{Amount: decimal.RequireFromString("2.25")},
	}
	audited.Ratings = []entity.Rating{{Rating: decimal.RequireFromString("4")}, {Rating: decimal.RequireFromString("5")}}

	created := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	rec, err := store.Records.Create(ctx, &entity.EarningsRecord{
		WorkerID: "asha", Platform: "deliveroo", Source: "/inbox/asha/w1.png", SourceType: constants.IMAGE,
		Parsed: audited, Status: constants.RecordStatusAudited, CreatedAt: created,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Audits.Create(ctx, &entity.AuditResult{RecordID: &rec.ID, WorkerID: "asha", ParsedSnapshot: audited, FairnessScore: 0.75}); err != nil {
		t.Fatal(err)
	}

	estimated := entity.NewParsedEarnings("")
	estimated.Total, estimated.TotalEstimated = dec("40"), true
	if _, err := store.Records.Create(ctx, &entity.EarningsRecord{
		WorkerID: "ravi", Platform: "uber", Source: "text", SourceType: constants.TXT,
		Parsed: estimated, Status: constants.RecordStatusParsed, CreatedAt: created.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	b, err := NewService(store.Records, store.Audits, nil).RecordsXLSX(ctx, entity.RecordFilter{})
	if err != nil {
		t.Fatalf("RecordsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !cmp.Equal(got, []string{earningsSheet, penaltiesSheet}) {
		t.Errorf("sheets = %v", got)
	}

	rows, err := f.GetRows(earningsSheet)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		earningsHeaders,
		{"2025-12-01", "uber", "ravi", "40", "yes", "", "", "", "0", "", "", "", "PARSED", "text"},
		{"05/12/25", "deliveroo", "asha", "150", "no", "120.5", "", "", "7.25", "4.50", "0.75", "no", "AUDITED", "/inbox/asha/w1.png"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("earnings rows (-want +got):\n%s", diff)
	}

	pens, err := f.GetRows(penaltiesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(pens) != 3 {
		t.Fatalf("penalty rows = %d", len(pens))
	}
	if pens[1][4] != "Late delivery" || pens[2][4] != "Deduction" || pens[2][5] != "2.25" {
		t.Errorf("penalties = %v", pens)
	}
}

func TestRecordsXLSX_Empty(t *testing.T) {
	store := newStore(t)
	b, err := NewService(store.Records, store.Audits, nil).RecordsXLSX(context.Background(), entity.RecordFilter{WorkerID: "nobody"})
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(earningsSheet)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
