package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reDecimal  = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	moneyNoise = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "", "$", "", "£", "", " ", "")
	moneyKeys  = []string{"total", "base_pay", "bonus", "distance_pay"}
	stringKeys = []string{"platform", "date"}
	allowedTop = map[string]struct{}{
		"platform": {}, "date": {}, "total": {}, "base_pay": {}, "bonus": {},
		"distance_pay": {}, "penalties": {}, "ratings": {},
	}
	synonyms = [][2]string{
		{"basePay", "base_pay"},
		{"base", "base_pay"},
		{"distancePay", "distance_pay"},
		{"distance", "distance_pay"},
		{"fuel", "distance_pay"},
		{"incentive", "bonus"},
		{"incentives", "bonus"},
		{"net_payable", "total"},
		{"net_pay", "total"},
		{"deductions", "penalties"},
		{"fines", "penalties"},
		{"statement_date", "date"},
	}
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (basePay -> base_pay, deductions -> penalties)
// - Drops null/empty fields and unknown keys
// - Coerces money to two-decimal strings, penalty amounts to absolute values
// - Reshapes bare rating numbers into {rating}
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	for _, s := range synonyms {
		from, to := s[0], s[1]
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	for _, k := range moneyKeys {
		if _, ok := m[k]; !ok {
			continue
		}
		if s, ok := coerceMoney(m[k], false); ok {
			m[k] = s
		} else {
			delete(m, k)
			dropped = append(dropped, k+"(invalid)")
		}
	}

	for _, k := range stringKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		s = strings.TrimSpace(s)
		if !isStr || s == "" {
			delete(m, k)
			dropped = append(dropped, k+"(empty)")
			continue
		}
		m[k] = s
	}

	if v, ok := m["penalties"]; ok {
		items, isArr := v.([]any)
		if !isArr {
			delete(m, "penalties")
			dropped = append(dropped, "penalties(type)")
		} else {
			m["penalties"] = sanitizePenalties(items, &dropped)
		}
	}

	if v, ok := m["ratings"]; ok {
		items, isArr := v.([]any)
		if !isArr {
			delete(m, "ratings")
			dropped = append(dropped, "ratings(type)")
		} else {
			m["ratings"] = sanitizeRatings(items, &dropped)
		}
	}

	for k := range maps.Clone(m) {
		if _, ok := allowedTop[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.refine.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizePenalties(items []any, dropped *[]string) []any {
	out := make([]any, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			*dropped = append(*dropped, fmt.Sprintf("penalties[%d](type)", i))
			continue
		}
		amount, ok := coerceMoney(obj["amount"], true)
		if !ok {
			*dropped = append(*dropped, fmt.Sprintf("penalties[%d](amount)", i))
			continue
		}
		clean := map[string]any{"amount": amount}
		typ := obj["type"]
		if typ == nil {
			if r, ok := obj["reason"]; ok {
				typ = r
			} else {
				typ = obj["label"]
			}
		}
		if s, ok := typ.(string); ok && strings.TrimSpace(s) != "" {
			clean["type"] = strings.TrimSpace(s)
		}
		out = append(out, clean)
	}
	return out
}

func sanitizeRatings(items []any, dropped *[]string) []any {
	out := make([]any, 0, len(items))
	for i, it := range items {
		var v any = it
		if obj, ok := it.(map[string]any); ok {
			v = obj["rating"]
			if v == nil {
				v = obj["value"]
			}
		}
		var f float64
		switch t := v.(type) {
		case float64:
			f = t
		case string:
			s := strings.TrimSpace(t)
			if idx := strings.Index(s, "/"); idx > 0 {
				s = s[:idx]
			}
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				*dropped = append(*dropped, fmt.Sprintf("ratings[%d](invalid)", i))
				continue
			}
			f = parsed
		default:
			*dropped = append(*dropped, fmt.Sprintf("ratings[%d](type)", i))
			continue
		}
		if f < 0 {
			*dropped = append(*dropped, fmt.Sprintf("ratings[%d](negative)", i))
			continue
		}
		// the schema allows two places; 4.833 becomes 4.83
		out = append(out, map[string]any{"rating": decimal.NewFromFloat(f).Round(2).String()})
	}
	return out
}

// coerceMoney accepts numbers or money-ish strings and returns a two-decimal string.
func coerceMoney(v any, absolute bool) (string, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := moneyNoise.Replace(strings.TrimSpace(t))
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		f = parsed
	default:
		return "", false
	}
	if absolute && f < 0 {
		f = -f
	}
	s := fmt.Sprintf("%.2f", f)
	if !reDecimal.MatchString(s) {
		return "", false
	}
	return s, true
}
