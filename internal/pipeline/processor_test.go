package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/extract"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/fairness"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

type fakeExtractor struct {
	text  string
	err   error
	gate  *sync.WaitGroup // when set, each call waits for the others to arrive
	mu    sync.Mutex
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (extract.TextExtractionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		f.gate.Done()
		f.gate.Wait()
	}
	if f.err != nil {
		return extract.TextExtractionResult{}, f.err
	}
	return extract.TextExtractionResult{
		Text: f.text,
		Metadata: extract.Metadata{
			Provider:   "fake",
			SourceType: constants.MapExtToFormat(filepath.Ext(path)),
			Method:     "image-ocr",
			Pages:      1,
			Confidence: 0.9,
		},
	}, nil
}

func newTestProcessor(t *testing.T, fx *fakeExtractor) *Processor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := "file:" + filepath.Join(t.TempDir(), "p.db") + "?_pragma=foreign_keys(1)"
	db, err := repository.Open(context.Background(), repository.Config{Driver: repository.DriverSQLite, DSN: dsn}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewProcessor(logger, repository.NewStore(db, logger), fx, parser.New(logger), fairness.NewEngine(fairness.DefaultBaselines(), logger))
}

func writeStatement(t *testing.T, name string, body []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, body, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProcessFile_DemoStatement(t *testing.T) {
	fx := &fakeExtractor{text: ocr.DemoStatementText}
	p := newTestProcessor(t, fx)
	path := writeStatement(t, "week.png", []byte("png bytes"))

	res, err := p.ProcessFile(context.Background(), path, Options{WorkerID: "w-1"})
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	rec := res.Record
	if rec.Status != constants.RecordStatusParsed || res.Duplicate {
		t.Errorf("status = %s duplicate = %v", rec.Status, res.Duplicate)
	}
	if rec.Platform != "deliveroo" {
		t.Errorf("platform = %q, want deliveroo", rec.Platform)
	}
	if rec.SourceType != constants.IMAGE || rec.OCRMethod != "image-ocr" {
		t.Errorf("source = %s method = %s", rec.SourceType, rec.OCRMethod)
	}
	if rec.Parsed.Total == nil || len(rec.Parsed.Penalties) == 0 {
		t.Errorf("parsed = %+v", rec.Parsed)
	}

	again, err := p.ProcessFile(context.Background(), path, Options{WorkerID: "w-1"})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Duplicate || again.Record.ID != rec.ID {
		t.Errorf("second run should dedupe: %+v", again)
	}
	if fx.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", fx.calls)
	}

	other, err := p.ProcessFile(context.Background(), path, Options{WorkerID: "w-2", Platform: "Uber Eats"})
	if err != nil {
		t.Fatal(err)
	}
	if other.Duplicate || other.Record.Platform != "uber" {
		t.Errorf("other worker: duplicate=%v platform=%q", other.Duplicate, other.Record.Platform)
	}
	if _, err := p.Store.Workers.GetByWorkerID(context.Background(), "w-2"); err != nil {
		t.Errorf("worker not ensured: %v", err)
	}
}

func TestProcessFile_SameContentConcurrently(t *testing.T) {
	gate := &sync.WaitGroup{}
	gate.Add(2)
	fx := &fakeExtractor{text: ocr.DemoStatementText, gate: gate}
	p := newTestProcessor(t, fx)
	body := []byte("identical statement bytes")
	paths := []string{writeStatement(t, "a.png", body), writeStatement(t, "b.png", body)}

	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.ProcessFile(context.Background(), path, Options{WorkerID: "w-new"})
		}()
	}
	wg.Wait()

	dups := 0
	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("ProcessFile(%s): %v", paths[i], errs[i])
		}
		if results[i].Duplicate {
			dups++
		}
	}
	if dups != 1 {
		t.Errorf("duplicates = %d, want 1", dups)
	}
	if results[0].Record.ID != results[1].Record.ID {
		t.Errorf("record ids differ: %s vs %s", results[0].Record.ID, results[1].Record.ID)
	}
	if fx.calls != 2 {
		t.Errorf("extractor calls = %d, want 2", fx.calls)
	}
	recs, err := p.Store.Records.List(context.Background(), entity.RecordFilter{WorkerID: "w-new"})
	if err != nil || len(recs) != 1 {
		t.Errorf("stored records = %d, err %v", len(recs), err)
	}
}

func TestProcessText_SameContentConcurrently(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{})
	const n = 6
	results := make([]*Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.ProcessText(context.Background(), "Platform: Uber\nTotal: 90", Options{WorkerID: "w-text"})
		}()
	}
	wg.Wait()

	fresh := 0
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("ProcessText #%d: %v", i, errs[i])
		}
		if !results[i].Duplicate {
			fresh++
		}
		if results[i].Record.ID != results[0].Record.ID {
			t.Errorf("#%d record id = %s, want %s", i, results[i].Record.ID, results[0].Record.ID)
		}
	}
	if fresh != 1 {
		t.Errorf("new records = %d, want 1", fresh)
	}
}

func TestProcessFile_Rejections(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{text: "x"})
	ctx := context.Background()

	if _, err := p.ProcessFile(ctx, writeStatement(t, "a.png", []byte("x")), Options{}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("missing worker: %v", err)
	}
	if _, err := p.ProcessFile(ctx, writeStatement(t, "a.docx", []byte("x")), Options{WorkerID: "w"}); !errors.Is(err, common.ErrUnsupported) {
		t.Errorf("docx: %v", err)
	}
	if _, err := p.ProcessFile(ctx, filepath.Join(t.TempDir(), "gone.png"), Options{WorkerID: "w"}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing file: %v", err)
	}
	big := make([]byte, constants.MaxUploadBytes+1)
	if _, err := p.ProcessFile(ctx, writeStatement(t, "big.jpg", big), Options{WorkerID: "w"}); !errors.Is(err, common.ErrTooLarge) {
		t.Errorf("big file: %v", err)
	}
}

func TestProcessFile_ExtractionFailureStoresFailedRecord(t *testing.T) {
	boom := errors.New("tesseract missing")
	fx := &fakeExtractor{err: boom}
	p := newTestProcessor(t, fx)
	path := writeStatement(t, "s.jpg", []byte("jpg"))

	if _, err := p.ProcessFile(context.Background(), path, Options{WorkerID: "w"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	recs, err := p.Store.Records.List(context.Background(), entity.RecordFilter{WorkerID: "w"})
	if err != nil || len(recs) != 1 {
		t.Fatalf("records = %d, %v", len(recs), err)
	}
	if recs[0].Status != constants.RecordStatusFailed || recs[0].ErrorMessage != boom.Error() {
		t.Errorf("record = %+v", recs[0])
	}

	// a retry after fixing the extractor is processed, not deduplicated
	fx.err, fx.text = nil, "Total: 10"
	res, err := p.ProcessFile(context.Background(), path, Options{WorkerID: "w"})
	if err != nil || res.Duplicate {
		t.Fatalf("retry: %+v %v", res, err)
	}
}

func TestProcessText(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{})
	long := "Base pay: 100\n" + strings.Repeat("é", 2000)

	res, err := p.ProcessText(context.Background(), long, Options{WorkerID: "w"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	rec := res.Record
	if rec.Platform != "other" || rec.Source != "text" || rec.SourceType != constants.TXT {
		t.Errorf("record = %+v", rec)
	}
	if n := len([]rune(rec.RawText)); n != constants.MaxStoredRawText {
		t.Errorf("raw text runes = %d", n)
	}
	if !rec.Parsed.TotalEstimated || !rec.Parsed.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("parsed = %+v", rec.Parsed)
	}

	if _, err := p.ProcessText(context.Background(), "   ", Options{WorkerID: "w"}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("blank text: %v", err)
	}
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	p := newTestProcessor(t, &fakeExtractor{})
	res, err := p.ProcessText(ctx, "Platform: Uber\nBase pay: 120\nBonus: 30\nTotal: 100\nRating: 4.9/5", Options{WorkerID: "w"})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Record.ID

	audit, err := p.Audit(ctx, AuditRequest{RecordID: &id})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if audit.Compliant || !audit.MissingAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("audit = %+v", audit)
	}
	if audit.WorkerID != "w" || audit.Context.Platform != "uber" {
		t.Errorf("worker = %q platform = %q", audit.WorkerID, audit.Context.Platform)
	}
	rec, _ := p.Store.Records.GetByID(ctx, id)
	if rec.Status != constants.RecordStatusAudited {
		t.Errorf("record status = %s", rec.Status)
	}

	fixed := decimal.NewFromInt(150)
	corrected, err := p.Audit(ctx, AuditRequest{RecordID: &id, Corrections: &entity.EarningsPatch{Total: &fixed}})
	if err != nil {
		t.Fatal(err)
	}
	if !corrected.Compliant || corrected.FairnessScore != 1 {
		t.Errorf("corrected audit = %+v", corrected)
	}
	latest, err := p.Store.Audits.LatestByRecord(ctx, id)
	if err != nil || latest.ID != corrected.ID {
		t.Errorf("latest = %v, %v", latest, err)
	}
	// corrections do not rewrite the stored statement
	rec, _ = p.Store.Records.GetByID(ctx, id)
	if !rec.Parsed.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("stored total changed to %s", rec.Parsed.Total)
	}
}

func TestAudit_InlineStatementWinsOverRecord(t *testing.T) {
	ctx := context.Background()
	p := newTestProcessor(t, &fakeExtractor{})
	res, err := p.ProcessText(ctx, "Platform: Uber\nBase pay: 120\nBonus: 30\nTotal: 100\nRating: 4.9/5", Options{WorkerID: "w"})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Record.ID

	inline := entity.NewParsedEarnings("")
	base, bonus, total := decimal.NewFromInt(120), decimal.NewFromInt(30), decimal.NewFromInt(150)
	inline.BasePay, inline.Bonus, inline.Total = &base, &bonus, &total
	inline.Ratings = []entity.Rating{{Rating: decimal.RequireFromString("4.9")}}

	audit, err := p.Audit(ctx, AuditRequest{RecordID: &id, Parsed: &inline})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !audit.Compliant || !audit.MissingAmount.IsZero() {
		t.Errorf("inline statement should be audited, got %+v", audit)
	}
	if !audit.ParsedSnapshot.Total.Equal(total) {
		t.Errorf("snapshot total = %s, want 150", audit.ParsedSnapshot.Total)
	}
	if audit.RecordID == nil || *audit.RecordID != id || audit.WorkerID != "w" || audit.Context.Platform != "uber" {
		t.Errorf("link: record=%v worker=%q platform=%q", audit.RecordID, audit.WorkerID, audit.Context.Platform)
	}
	rec, _ := p.Store.Records.GetByID(ctx, id)
	if rec.Status != constants.RecordStatusAudited || !rec.Parsed.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("record status = %s total = %s", rec.Status, rec.Parsed.Total)
	}

	missing := uuid.New()
	if _, err := p.Audit(ctx, AuditRequest{RecordID: &missing, Parsed: &inline}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown record with inline statement: %v", err)
	}
}

func TestAudit_InlineAndErrors(t *testing.T) {
	ctx := context.Background()
	p := newTestProcessor(t, &fakeExtractor{})

	total := decimal.NewFromInt(80)
	a, err := p.Audit(ctx, AuditRequest{WorkerID: "w", Corrections: &entity.EarningsPatch{Total: &total}})
	if err != nil {
		t.Fatalf("corrections-only audit: %v", err)
	}
	if a.RecordID != nil || !a.Compliant {
		t.Errorf("audit = %+v", a)
	}

	if _, err := p.Audit(ctx, AuditRequest{}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("empty request: %v", err)
	}
	missing := uuid.New()
	if _, err := p.Audit(ctx, AuditRequest{RecordID: &missing}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown record: %v", err)
	}
}

func TestResolvePlatform(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		hint   string
		parsed *string
		want   string
	}{
		{"", nil, "other"},
		{"", s("Swiggy Instamart"), "swiggy"},
		{"DoorDash", s("uber"), "doordash"},
		{"Bolt", nil, "bolt"},
		{"Coca-Cola Delivery", nil, "coca-cola delivery"},
		{"  ", s(""), "other"},
	}
	for _, tt := range tests {
		if got := resolvePlatform(tt.hint, tt.parsed); got != tt.want {
			t.Errorf("resolvePlatform(%q, %v) = %q, want %q", tt.hint, tt.parsed, got, tt.want)
		}
	}
}
