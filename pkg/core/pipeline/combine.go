package pipeline

import (
	"strings"
	"unicode/utf8"

	"snf_underwriting/pkg/core/docs"
)

// documentHeader precedes every document in the combined text.
const documentHeader = "=== DOCUMENT: "

// Combine joins decoded documents, each under its own header line.
func Combine(texts []docs.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(documentHeader)
		b.WriteString(t.Name)
		b.WriteString(" ===\n")
		b.WriteString(t.Text)
	}
	return b.String()
}

// TruncateAtBoundary cuts combined text to at most max bytes, dropping whole trailing
// documents. Only a single document that alone exceeds max is cut mid-text.
func TruncateAtBoundary(combined string, max int) (string, bool) {
	if max <= 0 || len(combined) <= max {
		return combined, false
	}
	if cut := strings.LastIndex(combined[:max], "\n\n"+documentHeader); cut > 0 {
		return combined[:cut], true
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(combined[cut]) {
		cut--
	}
	return combined[:cut], true
}

// Surviving returns the documents whose section starts within the (possibly truncated)
// combined text built from texts.
func Surviving(texts []docs.Text, combined string) []docs.Text {
	var kept []docs.Text
	offset := 0
	for _, t := range texts {
		if offset >= len(combined) {
			break
		}
		kept = append(kept, t)
		offset += len(documentHeader) + len(t.Name) + len(" ===\n") + len(t.Text) + len("\n\n")
	}
	return kept
}
