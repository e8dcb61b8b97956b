package retrieval

import (
	"strings"
	"unicode/utf8"
)

// PreviewConfig bounds the per-document preview handed to the rerank scorers.
type PreviewConfig struct {
	// HeadChars from the start of the decision: caption, parties, headnote.
	HeadChars int
	// ReasoningChars taken from the start of the legal-reasoning section
	// when one can be located.
	ReasoningChars int
	// TailChars from the conclusion region.
	TailChars int
	// TailSkipChars are cut off the very end first; the last lines of a
	// decision are typically signatures and registry boilerplate.
	TailSkipChars int
}

// DefaultPreviewConfig returns bounds tuned for court decisions.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		HeadChars:      800,
		ReasoningChars: 1200,
		TailChars:      800,
		TailSkipChars:  400,
	}
}

// reasoningMarkers locate the start of the court's own analysis. Greek
// headings first: the corpus is predominantly Greek.
var reasoningMarkers = []string{
	"ΣΚΕΠΤΙΚΟ",
	"ΝΟΜΙΚΗ ΠΤΥΧΗ",
	"ΑΝΑΛΥΣΗ",
	"Α Π Ο Φ Α Σ Η",
	"ΑΠΟΦΑΣΗ",
	"REASONING",
	"ANALYSIS",
	"JUDGMENT",
	"DECISION",
}

// findReasoningStart returns the byte offset of the first reasoning marker
// found past the head region, or -1.
func findReasoningStart(body string, after int) int {
	if after >= len(body) {
		return -1
	}
	search := body[after:]
	upper := strings.ToUpper(search)
	best := -1
	for _, marker := range reasoningMarkers {
		if idx := strings.Index(upper, marker); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return -1
	}
	return after + best
}

// BuildPreview assembles a bounded preview of one decision for pairwise
// scoring: title and head region, the opening of the reasoning section when
// present, and the conclusion tail with the signature block skipped.
func BuildPreview(title, body string, cfg PreviewConfig) string {
	body = strings.TrimSpace(body)
	total := cfg.HeadChars + cfg.ReasoningChars + cfg.TailChars
	if len(body) <= total {
		if title == "" {
			return body
		}
		return title + "\n" + body
	}

	var parts []string
	if title != "" {
		parts = append(parts, title)
	}

	head := body[:runeFloor(body, cfg.HeadChars)]
	parts = append(parts, head)

	reasoningEnd := cfg.HeadChars
	if start := findReasoningStart(body, cfg.HeadChars); start >= 0 {
		end := start + cfg.ReasoningChars
		if end > len(body) {
			end = len(body)
		}
		end = runeFloor(body, end)
		parts = append(parts, body[start:end])
		reasoningEnd = end
	}

	// Conclusion region, excluding the boilerplate very end.
	tailEnd := len(body) - cfg.TailSkipChars
	if tailEnd < reasoningEnd {
		tailEnd = len(body)
	}
	tailStart := tailEnd - cfg.TailChars
	if tailStart < reasoningEnd {
		tailStart = reasoningEnd
	}
	tailStart = runeFloor(body, tailStart)
	tailEnd = runeFloor(body, tailEnd)
	if tailStart < tailEnd {
		parts = append(parts, body[tailStart:tailEnd])
	}

	return strings.Join(parts, "\n[...]\n")
}

// runeFloor backs a byte offset up to the nearest rune start. Greek bodies
// are two bytes per letter, so any character budget can land mid-rune.
func runeFloor(s string, n int) int {
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
