package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

// AuditRequest names the statement to audit: a stored record, an inline
// parsed statement, or corrections alone. An inline statement wins over the
// stored one when both are given. Corrections are overlaid on whichever base
// is used.
type AuditRequest struct {
	RecordID    *uuid.UUID             `json:"record_id,omitempty"`
	WorkerID    string                 `json:"worker_id,omitempty"`
	Parsed      *entity.ParsedEarnings `json:"parsed_data,omitempty"`
	Corrections *entity.EarningsPatch  `json:"corrections,omitempty"`
	Context     entity.AuditContext    `json:"context"`
}

// Audit runs the fairness engine and stores the result. When the audit is
// for a stored record the record moves to AUDITED in the same transaction.
func (p *Processor) Audit(ctx context.Context, req AuditRequest) (*entity.AuditResult, error) {
	var (
		base     entity.ParsedEarnings
		workerID = req.WorkerID
	)
	if req.RecordID != nil {
		rec, err := p.Store.Records.GetByID(ctx, *req.RecordID)
		if err != nil {
			return nil, err
		}
		base = rec.Parsed
		workerID = rec.WorkerID
		if req.Context.Platform == "" {
			req.Context.Platform = rec.Platform
		}
	}
	switch {
	case req.Parsed != nil:
		// an inline statement replaces the stored one; record_id only links the audit
		base = *req.Parsed
		if base.Penalties == nil {
			base.Penalties = []entity.Penalty{}
		}
		if base.Ratings == nil {
			base.Ratings = []entity.Rating{}
		}
	case req.RecordID != nil:
	case !req.Corrections.IsEmpty():
		base = entity.NewParsedEarnings("")
	default:
		return nil, common.InvalidInputf("audit needs a record_id, a parsed statement or corrections")
	}
	if req.Corrections != nil {
		parser.Apply(&base, *req.Corrections)
	}
	if workerID == "" {
		workerID = common.WorkerIDFromContext(ctx)
	}

	res := p.Engine.Audit(base, req.Context)
	audit := &entity.AuditResult{
		RecordID:        req.RecordID,
		WorkerID:        workerID,
		ParsedSnapshot:  base,
		Context:         req.Context,
		FairnessScore:   res.FairnessScore,
		MissingAmount:   res.MissingAmount,
		PenaltyMismatch: res.PenaltyMismatch,
		RatingIssue:     res.RatingIssue,
		Explanation:     res.Explanation,
		Compliant:       res.Compliant,
	}

	var stored *entity.AuditResult
	err := p.Store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		if stored, err = tx.Audits.Create(ctx, audit); err != nil {
			return err
		}
		if req.RecordID != nil {
			return tx.Records.UpdateStatus(ctx, *req.RecordID, constants.RecordStatusAudited, "")
		}
		return nil
	})
	if err != nil {
		p.Logger.Error("processor.audit.failed", "record_id", req.RecordID, "err", err)
		return nil, err
	}
	p.Logger.Info("processor.audit.ok",
		"audit_id", stored.ID,
		"record_id", req.RecordID,
		"score", stored.FairnessScore,
		"compliant", stored.Compliant,
	)
	return stored, nil
}
