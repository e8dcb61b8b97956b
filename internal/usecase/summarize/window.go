package summarize

import (
	"strings"
	"unicode/utf8"
)

// WindowConfig bounds the text slice handed to the per-document classifier.
type WindowConfig struct {
	// MaxChars is the total window budget.
	MaxChars int
	// HeadChars orient the classifier: caption, parties, procedural posture.
	HeadChars int
}

// DefaultWindowConfig returns bounds tuned for court decisions.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		MaxChars:  6000,
		HeadChars: 1000,
	}
}

// sectionMarkers locate the court's own analysis. Greek headings first: the
// corpus is predominantly Greek.
var sectionMarkers = []string{
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

// AnalysisWindow selects the slice of a decision that the classifier reads.
// The reasoning section is preferred: engagement depth lives there, not in
// the caption. When no section heading is found the window combines the head
// with the closing pages, weighted toward the end where courts state their
// disposition.
func AnalysisWindow(body string, cfg WindowConfig) string {
	body = strings.TrimSpace(body)
	if len(body) <= cfg.MaxChars {
		return body
	}

	if start := findSection(body, cfg.HeadChars); start >= 0 {
		end := start + cfg.MaxChars
		if end > len(body) {
			end = len(body)
		}
		return body[start:runeFloor(body, end)]
	}

	head := body[:runeFloor(body, cfg.HeadChars)]
	tailBudget := cfg.MaxChars - cfg.HeadChars
	tail := body[runeFloor(body, len(body)-tailBudget):]
	return head + "\n[...]\n" + tail
}

// runeFloor backs a byte offset up to the nearest rune start. Greek bodies
// are two bytes per letter, so any character budget can land mid-rune.
func runeFloor(s string, n int) int {
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// findSection returns the byte offset of the first analysis marker past the
// head region, or -1.
func findSection(body string, after int) int {
	if after >= len(body) {
		return -1
	}
	upper := strings.ToUpper(body[after:])
	best := -1
	for _, marker := range sectionMarkers {
		if idx := strings.Index(upper, marker); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return -1
	}
	return after + best
}
