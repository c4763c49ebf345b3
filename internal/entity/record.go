package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
)

// EarningsRecord is one processed statement for data transfer between layers.
type EarningsRecord struct {
	ID            uuid.UUID              `json:"id"`
	WorkerID      string                 `json:"worker_id"`
	Platform      string                 `json:"platform"`
	Source        string                 `json:"source"` // file path, or "text"
	SourceType    string                 `json:"source_type"`
	ContentHash   []byte                 `json:"-"`
	RawText       string                 `json:"raw_text"`
	Parsed        ParsedEarnings         `json:"parsed"`
	Status        constants.RecordStatus `json:"status"`
	OCRMethod     string                 `json:"ocr_method,omitempty"`
	OCRConfidence float32                `json:"ocr_confidence,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// RecordFilter narrows record listings. Zero values mean "any".
type RecordFilter struct {
	WorkerID string
	Platform string
	Limit    int
}
