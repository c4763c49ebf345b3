package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

type EarningsRecordRepository interface {
	Create(ctx context.Context, rec *entity.EarningsRecord) (*entity.EarningsRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.EarningsRecord, error)
	// GetByHash finds a record this worker already submitted with the same content.
	GetByHash(ctx context.Context, workerID string, hash []byte) (*entity.EarningsRecord, error)
	List(ctx context.Context, f entity.RecordFilter) ([]*entity.EarningsRecord, error)
	UpdateParsed(ctx context.Context, id uuid.UUID, parsed entity.ParsedEarnings, status constants.RecordStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RecordStatus, errMsg string) error
}

type earningsRecordRepository struct {
	q      querier
	driver string
	logger *slog.Logger
}

const recordColumns = `id, worker_id, platform, source, source_type, content_hash, raw_text, parsed,
	status, ocr_method, ocr_confidence, error_message, created_at, updated_at`

const defaultListLimit = 100

func (r *earningsRecordRepository) Create(ctx context.Context, rec *entity.EarningsRecord) (*entity.EarningsRecord, error) {
	out := *rec
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	if out.Status == "" {
		out.Status = constants.RecordStatusUploaded
	}

	parsed, err := json.Marshal(out.Parsed)
	if err != nil {
		return nil, dbError(err, "encode parsed earnings")
	}

	var hash any
	if len(out.ContentHash) > 0 {
		hash = out.ContentHash
	}

	_, err = r.q.ExecContext(ctx, rebind(r.driver,
		`INSERT INTO earnings_records (`+recordColumns+`, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		out.ID.String(), out.WorkerID, out.Platform, out.Source, out.SourceType, hash,
		out.RawText, string(parsed), string(out.Status), nullString(out.OCRMethod),
		out.OCRConfidence, nullString(out.ErrorMessage), out.CreatedAt, out.UpdatedAt,
		totalColumn(out.Parsed))
	if err != nil {
		r.logger.Error("failed to create earnings record", "worker_id", out.WorkerID, "error", err)
		return nil, dbError(err, "create earnings record")
	}
	r.logger.Debug("earnings record created", "id", out.ID, "worker_id", out.WorkerID, "status", out.Status)
	return &out, nil
}

func (r *earningsRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.EarningsRecord, error) {
	row := r.q.QueryRowContext(ctx, rebind(r.driver,
		`SELECT `+recordColumns+` FROM earnings_records WHERE id = ?`), id.String())
	rec, err := scanRecord(row)
	if err != nil {
		return nil, dbError(err, "earnings record %s", id)
	}
	return rec, nil
}

func (r *earningsRecordRepository) GetByHash(ctx context.Context, workerID string, hash []byte) (*entity.EarningsRecord, error) {
	row := r.q.QueryRowContext(ctx, rebind(r.driver,
		`SELECT `+recordColumns+` FROM earnings_records WHERE worker_id = ? AND content_hash = ?`), workerID, hash)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, dbError(err, "earnings record for worker %s with this content", workerID)
	}
	return rec, nil
}

func (r *earningsRecordRepository) List(ctx context.Context, f entity.RecordFilter) ([]*entity.EarningsRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.WorkerID != "" {
		where = append(where, "worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, f.Platform)
	}
	q := `SELECT ` + recordColumns + ` FROM earnings_records`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, rebind(r.driver, q), args...)
	if err != nil {
		return nil, dbError(err, "list earnings records")
	}
	defer rows.Close()

	var out []*entity.EarningsRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dbError(err, "scan earnings record")
		}
		out = append(out, rec)
	}
	return out, dbError(rows.Err(), "list earnings records")
}

func (r *earningsRecordRepository) UpdateParsed(ctx context.Context, id uuid.UUID, parsed entity.ParsedEarnings, status constants.RecordStatus) error {
	b, err := json.Marshal(parsed)
	if err != nil {
		return dbError(err, "encode parsed earnings")
	}
	res, err := r.q.ExecContext(ctx, rebind(r.driver,
		`UPDATE earnings_records SET parsed = ?, total = ?, status = ?, updated_at = ? WHERE id = ?`),
		string(b), totalColumn(parsed), string(status), time.Now().UTC(), id.String())
	return r.checkUpdated(res, err, id)
}

func (r *earningsRecordRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RecordStatus, errMsg string) error {
	res, err := r.q.ExecContext(ctx, rebind(r.driver,
		`UPDATE earnings_records SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`),
		string(status), nullString(errMsg), time.Now().UTC(), id.String())
	return r.checkUpdated(res, err, id)
}

func (r *earningsRecordRepository) checkUpdated(res sql.Result, err error, id uuid.UUID) error {
	if err != nil {
		r.logger.Error("failed to update earnings record", "id", id, "error", err)
		return dbError(err, "update earnings record %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dbError(sql.ErrNoRows, "earnings record %s", id)
	}
	return nil
}

func totalColumn(p entity.ParsedEarnings) decimal.NullDecimal {
	if p.Total == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: p.Total.Round(2), Valid: true}
}

func scanRecord(s rowScanner) (*entity.EarningsRecord, error) {
	var (
		rec        entity.EarningsRecord
		status     string
		parsed     []byte
		ocrMethod  sql.NullString
		confidence sql.NullFloat64
		errMsg     sql.NullString
	)
	err := s.Scan(&rec.ID, &rec.WorkerID, &rec.Platform, &rec.Source, &rec.SourceType, &rec.ContentHash,
		&rec.RawText, &parsed, &status, &ocrMethod, &confidence, &errMsg,
		scanTime{&rec.CreatedAt}, scanTime{&rec.UpdatedAt})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(parsed, &rec.Parsed); err != nil {
		return nil, err
	}
	if rec.Parsed.Penalties == nil {
		rec.Parsed.Penalties = []entity.Penalty{}
	}
	if rec.Parsed.Ratings == nil {
		rec.Parsed.Ratings = []entity.Rating{}
	}
	rec.Status = constants.RecordStatus(status)
	rec.OCRMethod = ocrMethod.String
	rec.OCRConfidence = float32(confidence.Float64)
	rec.ErrorMessage = errMsg.String
	return &rec, nil
}
