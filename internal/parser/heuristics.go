package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

const defaultPenaltyType = "Deduction"

var (
	reNumber = regexp.MustCompile(`-?\s*\d+(?:\.\d{1,2})?`)
	reDate   = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	reRating = regexp.MustCompile(`(\d\.\d|\d)/\d`)

	// currency glyphs and thousands separators removed before number matching
	numberNoise = strings.NewReplacer(",", "", "₹", "", "Rs", "", "$", "", "£", "")
)

// lineRule is one keyword category. Rules are independent: a line is offered
// to every rule whose keyword pattern matches its lower-cased form.
type lineRule struct {
	name    string
	keyword *regexp.Regexp
	apply   func(out *entity.ParsedEarnings, line string)
}

func defaultRules() []lineRule {
	return []lineRule{
		{name: "platform", keyword: regexp.MustCompile(`platform`), apply: applyPlatform},
		{name: "date", keyword: regexp.MustCompile(`date|period|week`), apply: applyDate},
		{name: "base_pay", keyword: regexp.MustCompile(`base pay|basic|rate`), apply: setOnce(func(o *entity.ParsedEarnings) **decimal.Decimal { return &o.BasePay })},
		{name: "bonus", keyword: regexp.MustCompile(`bonus|incentive|extra`), apply: setOnce(func(o *entity.ParsedEarnings) **decimal.Decimal { return &o.Bonus })},
		{name: "distance_pay", keyword: regexp.MustCompile(`distanc|fuel|mileage`), apply: setOnce(func(o *entity.ParsedEarnings) **decimal.Decimal { return &o.DistancePay })},
		{name: "total", keyword: regexp.MustCompile(`total|earned|net payable`), apply: setOnce(func(o *entity.ParsedEarnings) **decimal.Decimal { return &o.Total })},
		{name: "penalty", keyword: regexp.MustCompile(`penalt|deduct|surcharge|fine`), apply: applyPenalty},
		{name: "rating", keyword: regexp.MustCompile(`rating|feedback`), apply: applyRating},
	}
}

// NumberFrom returns the first signed amount in s after stripping currency
// glyphs and thousands separators, or nil when there is none.
func NumberFrom(s string) *decimal.Decimal {
	cleaned := numberNoise.Replace(s)
	m := reNumber.FindString(cleaned)
	if m == "" {
		return nil
	}
	m = strings.Join(strings.Fields(m), "")
	d, err := decimal.NewFromString(m)
	if err != nil {
		return nil
	}
	return &d
}

// DateFrom returns the first date-shaped token in s, verbatim.
func DateFrom(s string) (string, bool) {
	m := reDate.FindString(s)
	return m, m != ""
}

// RatingFrom returns the numerator of the first "x.y/z" fraction in s.
func RatingFrom(s string) *decimal.Decimal {
	m := reRating.FindStringSubmatch(s)
	if len(m) < 2 {
		return nil
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil
	}
	return &d
}

func setOnce(field func(*entity.ParsedEarnings) **decimal.Decimal) func(*entity.ParsedEarnings, string) {
	return func(out *entity.ParsedEarnings, line string) {
		target := field(out)
		if *target != nil {
			return
		}
		*target = NumberFrom(line)
	}
}

func applyPlatform(out *entity.ParsedEarnings, line string) {
	if out.Platform != nil {
		return
	}
	parts := strings.Split(line, ":")
	if len(parts) < 2 {
		return
	}
	if v := strings.TrimSpace(parts[1]); v != "" {
		out.Platform = &v
	}
}

func applyDate(out *entity.ParsedEarnings, line string) {
	if out.Date != nil {
		return
	}
	if d, ok := DateFrom(line); ok {
		out.Date = &d
	}
}

func applyPenalty(out *entity.ParsedEarnings, line string) {
	amount := NumberFrom(line)
	if amount == nil {
		return
	}
	typ := penaltyType(line)
	out.Penalties = append(out.Penalties, entity.Penalty{Type: &typ, Amount: amount.Abs()})
}

func penaltyType(line string) string {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return defaultPenaltyType
	}
	if t := strings.TrimSpace(line[:idx]); t != "" {
		return t
	}
	return defaultPenaltyType
}

func applyRating(out *entity.ParsedEarnings, line string) {
	if r := RatingFrom(line); r != nil {
		out.Ratings = append(out.Ratings, entity.Rating{Rating: *r})
	}
}

// splitLines breaks text on \n or \r\n, trims each line and drops empty ones.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
