package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

const (
	earningsSheet  = "Earnings"
	penaltiesSheet = "Penalties"
)

var earningsHeaders = []string{
	"Statement Date",
	"Platform",
	"Worker",
	"Total",
	"Total Estimated",
	"Base Pay",
	"Bonus",
	"Distance Pay",
	"Penalties",
	"Avg Rating",
	"Fairness Score",
	"Compliant",
	"Status",
	"Source",
}

// Service produces XLSX bytes for exports.
type Service struct {
	records repository.EarningsRecordRepository
	audits  repository.AuditResultRepository
	logger  *slog.Logger
}

func NewService(records repository.EarningsRecordRepository, audits repository.AuditResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, audits: audits, logger: logger}
}

// RecordsXLSX returns a workbook with one row per record on "Earnings" and
// one row per penalty on "Penalties". Fairness columns come from the latest
// audit and stay blank for records never audited.
func (s *Service) RecordsXLSX(ctx context.Context, filter entity.RecordFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", earningsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(penaltiesSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(earningsSheet)
	f.SetActiveSheet(idx)

	writeRow(f, earningsSheet, 1, toAny(earningsHeaders)...)
	writeRow(f, penaltiesSheet, 1, "Record ID", "Statement Date", "Platform", "Worker", "Type", "Amount")

	row, penRow := 2, 2
	for _, r := range recs {
		p := r.Parsed
		score, compliant := "", ""
		if s.audits != nil {
			a, err := s.audits.LatestByRecord(ctx, r.ID)
			switch {
			case err == nil:
				score = fmt.Sprintf("%.2f", a.FairnessScore)
				compliant = yesNo(a.Compliant)
			case !errors.Is(err, common.ErrNotFound):
				return nil, fmt.Errorf("latest audit for %s: %w", r.ID, err)
			}
		}
		avg := ""
		if v, ok := p.AverageRating(); ok {
			avg = v.StringFixed(2)
		}

		writeRow(f, earningsSheet, row,
			statementDate(p, r.CreatedAt),
			r.Platform,
			r.WorkerID,
			money(p.Total),
			yesNo(p.TotalEstimated),
			money(p.BasePay),
			money(p.Bonus),
			money(p.DistancePay),
			moneyValue(p.PenaltyTotal()),
			avg,
			score,
			compliant,
			string(r.Status),
			truncate(r.Source, 120),
		)
		row++

		for _, pen := range p.Penalties {
			typ := "Deduction"
			if pen.Type != nil {
				typ = *pen.Type
			}
			writeRow(f, penaltiesSheet, penRow, r.ID.String(), statementDate(p, r.CreatedAt), r.Platform, r.WorkerID, typ, moneyValue(pen.Amount))
			penRow++
		}
	}

	_ = f.SetColWidth(earningsSheet, "A", "A", 14) // date
	_ = f.SetColWidth(earningsSheet, "B", "C", 16) // platform, worker
	_ = f.SetColWidth(earningsSheet, "D", "L", 13) // amounts, score
	_ = f.SetColWidth(earningsSheet, "N", "N", 48) // source
	_ = f.SetColWidth(penaltiesSheet, "A", "A", 38)
	_ = f.SetColWidth(penaltiesSheet, "E", "E", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"worker_id", filter.WorkerID,
		"platform", filter.Platform,
		"rows", len(recs),
		"penalty_rows", penRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// statementDate prefers the normalized date, then the raw one, then the upload day.
func statementDate(p entity.ParsedEarnings, created time.Time) string {
	switch {
	case p.DateISO != nil:
		return *p.DateISO
	case p.Date != nil:
		return *p.Date
	case !created.IsZero():
		return created.Format("2006-01-02")
	}
	return ""
}

// money writes amounts as numbers so spreadsheet formulas work; unset stays blank.
func money(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return moneyValue(*d)
}

func moneyValue(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
