package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

type AuditResultRepository interface {
	Create(ctx context.Context, a *entity.AuditResult) (*entity.AuditResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.AuditResult, error)
	// ListByRecord returns audits for a record, newest first.
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*entity.AuditResult, error)
	LatestByRecord(ctx context.Context, recordID uuid.UUID) (*entity.AuditResult, error)
}

type auditResultRepository struct {
	q      querier
	driver string
	logger *slog.Logger
}

const auditColumns = `id, record_id, worker_id, parsed_snapshot, context, fairness_score, missing_amount,
	penalty_mismatch, rating_issue, explanation, compliant, created_at`

func (r *auditResultRepository) Create(ctx context.Context, a *entity.AuditResult) (*entity.AuditResult, error) {
	out := *a
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	snapshot, err := json.Marshal(out.ParsedSnapshot)
	if err != nil {
		return nil, dbError(err, "encode audit snapshot")
	}
	actx, err := json.Marshal(out.Context)
	if err != nil {
		return nil, dbError(err, "encode audit context")
	}
	var recordID sql.NullString
	if out.RecordID != nil {
		recordID = sql.NullString{String: out.RecordID.String(), Valid: true}
	}

	_, err = r.q.ExecContext(ctx, rebind(r.driver,
		`INSERT INTO audit_results (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		out.ID.String(), recordID, out.WorkerID, string(snapshot), string(actx), out.FairnessScore,
		out.MissingAmount.Round(2), out.PenaltyMismatch, out.RatingIssue, out.Explanation, out.Compliant,
		out.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create audit result", "record_id", out.RecordID, "error", err)
		return nil, dbError(err, "create audit result")
	}
	return &out, nil
}

func (r *auditResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.AuditResult, error) {
	row := r.q.QueryRowContext(ctx, rebind(r.driver,
		`SELECT `+auditColumns+` FROM audit_results WHERE id = ?`), id.String())
	a, err := scanAudit(row)
	if err != nil {
		return nil, dbError(err, "audit result %s", id)
	}
	return a, nil
}

func (r *auditResultRepository) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*entity.AuditResult, error) {
	rows, err := r.q.QueryContext(ctx, rebind(r.driver,
		`SELECT `+auditColumns+` FROM audit_results WHERE record_id = ? ORDER BY created_at DESC, id`), recordID.String())
	if err != nil {
		return nil, dbError(err, "list audit results")
	}
	defer rows.Close()

	var out []*entity.AuditResult
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, dbError(err, "scan audit result")
		}
		out = append(out, a)
	}
	return out, dbError(rows.Err(), "list audit results")
}

func (r *auditResultRepository) LatestByRecord(ctx context.Context, recordID uuid.UUID) (*entity.AuditResult, error) {
	row := r.q.QueryRowContext(ctx, rebind(r.driver,
		`SELECT `+auditColumns+` FROM audit_results WHERE record_id = ? ORDER BY created_at DESC, id LIMIT 1`), recordID.String())
	a, err := scanAudit(row)
	if err != nil {
		return nil, dbError(err, "audit for record %s", recordID)
	}
	return a, nil
}

func scanAudit(s rowScanner) (*entity.AuditResult, error) {
	var (
		a        entity.AuditResult
		recordID sql.NullString
		snapshot []byte
		actx     []byte
		missing  decimal.Decimal
	)
	err := s.Scan(&a.ID, &recordID, &a.WorkerID, &snapshot, &actx, &a.FairnessScore, &missing,
		&a.PenaltyMismatch, &a.RatingIssue, &a.Explanation, &a.Compliant, scanTime{&a.CreatedAt})
	if err != nil {
		return nil, err
	}
	if recordID.Valid {
		id, err := uuid.Parse(recordID.String)
		if err != nil {
			return nil, err
		}
		a.RecordID = &id
	}
	if err := json.Unmarshal(snapshot, &a.ParsedSnapshot); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(actx, &a.Context); err != nil {
		return nil, err
	}
	a.MissingAmount = missing
	return &a, nil
}
