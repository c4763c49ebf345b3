package fairness

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

const (
	weightMissing   = 0.5
	weightPenalty   = 0.25
	weightRating    = 0.15
	weightEstimated = 0.10
)

// Result is the outcome of auditing one statement.
type Result struct {
	Platform        string
	Expected        *decimal.Decimal // what the statement should have paid, when known
	MissingAmount   decimal.Decimal
	PenaltyMismatch bool
	RatingIssue     bool
	FairnessScore   float64
	Findings        []string
	Explanation     string
	Compliant       bool
}

type Engine struct {
	baselines Baselines
	logger    *slog.Logger
}

func NewEngine(baselines Baselines, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if baselines.Platforms == nil {
		baselines = DefaultBaselines()
	}
	return &Engine{baselines: baselines, logger: logger}
}

// Audit judges parsed against the platform baseline. The platform comes from
// ac.Platform when set, else from the statement.
func (e *Engine) Audit(parsed entity.ParsedEarnings, ac entity.AuditContext) Result {
	platform := ac.Platform
	if strings.TrimSpace(platform) == "" {
		platform = parsed.PlatformOr("other")
	}
	bl := e.baselines.For(platform)

	r := Result{Platform: platform}

	var ref decimal.Decimal
	r.MissingAmount, r.Expected, ref = missingAmount(parsed, ac, bl)
	if r.MissingAmount.IsPositive() {
		r.Findings = append(r.Findings, missingFinding(r, parsed))
	}

	var penFindings []string
	r.PenaltyMismatch, penFindings = penaltyMismatch(parsed, bl)
	r.Findings = append(r.Findings, penFindings...)

	var ratingFindings []string
	r.RatingIssue, ratingFindings = ratingIssue(parsed, bl)
	r.Findings = append(r.Findings, ratingFindings...)

	if parsed.TotalEstimated {
		r.Findings = append(r.Findings, "The statement shows no total; it was estimated from the listed components.")
	}

	r.FairnessScore = score(r, ref, parsed.TotalEstimated)
	r.Compliant = r.MissingAmount.IsZero() && !r.PenaltyMismatch && !r.RatingIssue
	if len(r.Findings) == 0 {
		r.Explanation = "No issues found: the total matches the listed components, penalties are within limits and ratings look healthy."
	} else {
		r.Explanation = strings.Join(r.Findings, " ")
	}

	e.logger.Debug("fairness.audit.done",
		"platform", platform,
		"missing", r.MissingAmount.StringFixed(2),
		"penalty_mismatch", r.PenaltyMismatch,
		"rating_issue", r.RatingIssue,
		"score", r.FairnessScore)
	return r
}

// missingAmount returns the shortfall, the expected total (nil if unknown) and
// the reference amount the shortfall is scored against.
func missingAmount(p entity.ParsedEarnings, ac entity.AuditContext, bl Baseline) (decimal.Decimal, *decimal.Decimal, decimal.Decimal) {
	var expected *decimal.Decimal
	switch {
	case ac.ExpectedTotal != nil:
		v := *ac.ExpectedTotal
		expected = &v
	case p.Total != nil && !p.TotalEstimated && p.HasComponents():
		v := p.GrossPay().Sub(p.PenaltyTotal())
		expected = &v
	}

	total := decimal.Zero
	if p.Total != nil {
		total = *p.Total
	}

	missing := decimal.Zero
	ref := decimal.Zero
	if expected != nil {
		missing = decimal.Max(missing, expected.Sub(total))
		ref = *expected
	}
	if bl.MinPayout.IsPositive() && p.Total != nil {
		missing = decimal.Max(missing, bl.MinPayout.Sub(total))
		if !ref.IsPositive() {
			ref = bl.MinPayout
		}
	}
	if missing.LessThanOrEqual(bl.Tolerance) {
		missing = decimal.Zero
	}
	return missing.Round(2), expected, ref
}

func missingFinding(r Result, p entity.ParsedEarnings) string {
	got := "nothing"
	if p.Total != nil {
		got = p.Total.StringFixed(2)
	}
	if r.Expected != nil {
		return fmt.Sprintf("Paid %s but the listed components add up to %s, leaving %s unaccounted for.",
			got, r.Expected.StringFixed(2), r.MissingAmount.StringFixed(2))
	}
	return fmt.Sprintf("Paid %s, which is %s below the minimum payout for this platform.",
		got, r.MissingAmount.StringFixed(2))
}

func penaltyMismatch(p entity.ParsedEarnings, bl Baseline) (bool, []string) {
	if len(p.Penalties) == 0 {
		return false, nil
	}
	var findings []string
	gross := p.GrossPay()
	total := p.PenaltyTotal()

	if !gross.IsPositive() {
		findings = append(findings, fmt.Sprintf("Penalties of %s were deducted but no gross pay is shown to deduct them from.", total.StringFixed(2)))
	} else if ratio := total.Div(gross); ratio.GreaterThan(bl.MaxPenaltyRatio) {
		findings = append(findings, fmt.Sprintf("Penalties take %s%% of gross pay, above the %s%% limit.",
			ratio.Mul(decimal.NewFromInt(100)).StringFixed(0), bl.MaxPenaltyRatio.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}
	for _, pen := range p.Penalties {
		label := "Deduction"
		if pen.Type != nil && *pen.Type != "" {
			label = *pen.Type
		}
		switch {
		case pen.Amount.IsZero():
			findings = append(findings, fmt.Sprintf("%q is listed with no amount.", label))
		case bl.MaxSinglePenalty.IsPositive() && pen.Amount.GreaterThan(bl.MaxSinglePenalty):
			findings = append(findings, fmt.Sprintf("%q of %s exceeds the single-penalty limit of %s.",
				label, pen.Amount.StringFixed(2), bl.MaxSinglePenalty.StringFixed(2)))
		}
	}
	return len(findings) > 0, findings
}

func ratingIssue(p entity.ParsedEarnings, bl Baseline) (bool, []string) {
	if len(p.Ratings) == 0 {
		return false, nil
	}
	var findings []string
	low := 0
	for _, r := range p.Ratings {
		if r.Rating.LessThan(bl.MinRating) {
			low++
		}
	}
	if low > 0 {
		findings = append(findings, fmt.Sprintf("%d rating(s) fall below %s.", low, bl.MinRating.StringFixed(1)))
	}
	if n := len(p.Ratings); n >= 2 {
		first, last := p.Ratings[0].Rating, p.Ratings[n-1].Rating
		if drop := first.Sub(last); drop.GreaterThan(bl.RatingDropThreshold) {
			findings = append(findings, fmt.Sprintf("Rating dropped from %s to %s.", first.String(), last.String()))
		}
	}
	return len(findings) > 0, findings
}

func score(r Result, ref decimal.Decimal, estimated bool) float64 {
	s := decimal.NewFromInt(1)
	if r.MissingAmount.IsPositive() {
		frac := decimal.NewFromInt(1)
		if ref.IsPositive() {
			frac = decimal.Min(r.MissingAmount.Div(ref), frac)
		}
		s = s.Sub(frac.Mul(decimal.NewFromFloat(weightMissing)))
	}
	if r.PenaltyMismatch {
		s = s.Sub(decimal.NewFromFloat(weightPenalty))
	}
	if r.RatingIssue {
		s = s.Sub(decimal.NewFromFloat(weightRating))
	}
	if estimated {
		s = s.Sub(decimal.NewFromFloat(weightEstimated))
	}
	s = decimal.Max(s, decimal.Zero)
	f, _ := s.Round(2).Float64()
	return f
}
