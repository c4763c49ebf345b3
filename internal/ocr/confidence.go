package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate     = regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b|\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	reCurr     = regexp.MustCompile(`\b(inr|usd|gbp|eur|rs\.?)\b|[₹$£€]`)
	reAmount   = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reEarnings = regexp.MustCompile(`total|base pay|bonus|incentive|penalt|deduct|rating|payout`)
)

const ImageConfidenceThreshold = 0.6

// heuristicConfidence scores how much the text looks like an earnings statement.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDate.MatchString(txtL) {
		score += 0.15
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reEarnings.MatchString(txtL) {
		score += 0.25
	}
	if len(txt) > 80 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
