package entity

import (
	"github.com/shopspring/decimal"
)

// ParsedEarnings is the structured form of one earnings statement.
// Optional scalars are nil when nothing could be extracted for them.
type ParsedEarnings struct {
	Platform       *string          `json:"platform,omitempty"`
	Date           *string          `json:"date,omitempty"`     // raw matched substring
	DateISO        *string          `json:"date_iso,omitempty"` // YYYY-MM-DD, only when Date is unambiguous
	Total          *decimal.Decimal `json:"total,omitempty"`
	TotalEstimated bool             `json:"total_estimated"` // Total was derived from components
	BasePay        *decimal.Decimal `json:"base_pay,omitempty"`
	Bonus          *decimal.Decimal `json:"bonus,omitempty"`
	DistancePay    *decimal.Decimal `json:"distance_pay,omitempty"`
	Penalties      []Penalty        `json:"penalties"`
	Ratings        []Rating         `json:"ratings"`
	RawText        string           `json:"raw_text"`
}

type Penalty struct {
	Type   *string         `json:"type,omitempty"`
	Amount decimal.Decimal `json:"amount"` // always >= 0
}

type Rating struct {
	Rating decimal.Decimal `json:"rating"`
}

// NewParsedEarnings returns an empty record that keeps rawText and has non-nil lists.
func NewParsedEarnings(rawText string) ParsedEarnings {
	return ParsedEarnings{
		Penalties: []Penalty{},
		Ratings:   []Rating{},
		RawText:   rawText,
	}
}

// PenaltyTotal sums all penalty amounts.
func (p ParsedEarnings) PenaltyTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, pen := range p.Penalties {
		sum = sum.Add(pen.Amount)
	}
	return sum
}

// GrossPay is basePay + bonus + distancePay with unset addends as zero.
func (p ParsedEarnings) GrossPay() decimal.Decimal {
	return valueOrZero(p.BasePay).Add(valueOrZero(p.Bonus)).Add(valueOrZero(p.DistancePay))
}

// HasComponents reports whether any pay component or penalty was extracted.
func (p ParsedEarnings) HasComponents() bool {
	return p.BasePay != nil || p.Bonus != nil || p.DistancePay != nil || len(p.Penalties) > 0
}

// PlatformOr returns the platform or def when unset.
func (p ParsedEarnings) PlatformOr(def string) string {
	if p.Platform == nil || *p.Platform == "" {
		return def
	}
	return *p.Platform
}

// AverageRating returns the mean rating, or false when there are none.
func (p ParsedEarnings) AverageRating() (decimal.Decimal, bool) {
	if len(p.Ratings) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, r := range p.Ratings {
		sum = sum.Add(r.Rating)
	}
	return sum.Div(decimal.NewFromInt(int64(len(p.Ratings)))).Round(2), true
}

// EarningsPatch is a partial ParsedEarnings as produced by the refinement
// model or by a user correction. Nil fields are "not supplied"; a non-nil
// empty slice is "supplied as empty".
type EarningsPatch struct {
	Platform    *string          `json:"platform,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	BasePay     *decimal.Decimal `json:"base_pay,omitempty"`
	Bonus       *decimal.Decimal `json:"bonus,omitempty"`
	DistancePay *decimal.Decimal `json:"distance_pay,omitempty"`
	Penalties   []Penalty        `json:"penalties,omitempty"`
	Ratings     []Rating         `json:"ratings,omitempty"`
}

// IsEmpty reports whether the patch supplies no field at all.
func (p *EarningsPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Platform == nil && p.Date == nil && p.Total == nil && p.BasePay == nil &&
		p.Bonus == nil && p.DistancePay == nil && p.Penalties == nil && p.Ratings == nil
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
