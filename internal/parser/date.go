package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeDate converts a raw date token into YYYY-MM-DD when its reading is
// unambiguous: year-first tokens, or day-first tokens where only one of the
// first two fields can be a month. Two-digit years are taken as 20YY.
func NormalizeDate(raw string) (string, bool) {
	parts := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return "", false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", false
		}
		nums[i] = n
	}

	var y, m, d int
	switch {
	case len(parts[0]) == 4:
		y, m, d = nums[0], nums[1], nums[2]
	default:
		first, second := nums[0], nums[1]
		switch {
		case first == second:
			d, m = first, second
		case first > 12 && second <= 12:
			d, m = first, second
		case second > 12 && first <= 12:
			m, d = first, second
		default:
			return "", false
		}
		y = nums[2]
		if len(parts[2]) == 2 {
			y += 2000
		} else if len(parts[2]) != 4 {
			return "", false
		}
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}
