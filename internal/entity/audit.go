package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditContext carries what the worker knows that the statement does not.
type AuditContext struct {
	Platform      string           `json:"platform,omitempty"`
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

// AuditResult is a stored fairness assessment.
type AuditResult struct {
	ID              uuid.UUID       `json:"id"`
	RecordID        *uuid.UUID      `json:"record_id,omitempty"`
	WorkerID        string          `json:"worker_id,omitempty"`
	ParsedSnapshot  ParsedEarnings  `json:"parsed_snapshot"`
	Context         AuditContext    `json:"context"`
	FairnessScore   float64         `json:"fairness_score"`
	MissingAmount   decimal.Decimal `json:"missing_amount"`
	PenaltyMismatch bool            `json:"penalty_mismatch"`
	RatingIssue     bool            `json:"rating_issue"`
	Explanation     string          `json:"explanation"`
	Compliant       bool            `json:"compliant"`
	CreatedAt       time.Time       `json:"created_at"`
}
