package llm

import (
	"strings"
)

const maxPromptText = 3000

// BuildSystemPrompt describes the earnings fields and formatting rules.
func BuildSystemPrompt(req RefineRequest) string {
	parts := []string{
		"You read OCR text from a gig worker's earnings statement (ride-hailing, food delivery, courier apps).",
		"Return ONLY a JSON object that matches the provided JSON Schema.",
		"Fields: platform (app name), date (copy the statement date exactly as printed), total (net payout),",
		"base_pay (base/trip fare), bonus (incentives, surge, extras), distance_pay (distance, fuel or mileage pay),",
		"penalties (each deduction, fine, surcharge or penalty as {type, amount}), ratings (each customer rating as {rating}, numerator only).",
		"Money values are plain decimal strings without currency symbols or thousands separators, e.g. \"1250.50\".",
		"Penalty amounts are always positive.",
		"Never output null. If a field is not present, omit it. Do not invent values that are not in the text.",
	}
	if hint := strings.TrimSpace(req.PlatformHint); hint != "" {
		parts = append(parts, "The worker says this statement is from: "+hint+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the statement text, truncated to keep requests small.
func BuildUserPrompt(req RefineRequest) string {
	var b strings.Builder
	text := strings.TrimSpace(req.RawText)
	b.WriteString("Statement text (first ~3k chars):\n")
	if len(text) > maxPromptText {
		b.WriteString(truncateUTF8(text, maxPromptText))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

// BuildTranscribePrompt asks a vision model for a faithful line-by-line transcript.
func BuildTranscribePrompt() string {
	return "Transcribe every line of text in this earnings statement screenshot exactly as shown, " +
		"one line per row, keeping labels, currency symbols and numbers. Output plain text only."
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
