package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"caselaw-orchestrator/internal/domain"
)

// classifierOutput is the structured shape the classifier is asked to emit.
type classifierOutput struct {
	Engagement       string `json:"engagement"`
	Evidence         string `json:"evidence"`
	ForeignElement   bool   `json:"foreign_element"`
	TopicOverlapOnly bool   `json:"topic_overlap_only"`
}

// parsedClassification is the adapter-agnostic result of one classifier
// call, before the relevance override rules are applied.
type parsedClassification struct {
	Engagement domain.EngagementLevel
	Evidence   string
	Signals    domain.ClassificationSignals
}

// ParseClassification decodes one classifier response. It tries the
// structured JSON shape first and falls back to the legacy labeled-line
// format (ENGAGEMENT: / EVIDENCE: / FOREIGN_ELEMENT: / TOPIC_OVERLAP_ONLY:)
// that older prompt versions produced.
func ParseClassification(text string) (parsedClassification, error) {
	if p, err := parseStructured(text); err == nil {
		return p, nil
	}
	return parseLabeled(text)
}

func parseStructured(text string) (parsedClassification, error) {
	open := strings.Index(text, "{")
	closing := strings.LastIndex(text, "}")
	if open < 0 || closing <= open {
		return parsedClassification{}, fmt.Errorf("no JSON object in classifier output: %w", domain.ErrParse)
	}
	var out classifierOutput
	if err := json.Unmarshal([]byte(text[open:closing+1]), &out); err != nil {
		return parsedClassification{}, fmt.Errorf("decode classifier output: %w", domain.ErrParse)
	}
	engagement, ok := normalizeEngagement(out.Engagement)
	if !ok {
		return parsedClassification{}, fmt.Errorf("unknown engagement %q: %w", out.Engagement, domain.ErrParse)
	}
	return parsedClassification{
		Engagement: engagement,
		Evidence:   strings.TrimSpace(out.Evidence),
		Signals: domain.ClassificationSignals{
			ForeignElement:   out.ForeignElement,
			TopicOverlapOnly: out.TopicOverlapOnly,
		},
	}, nil
}

func parseLabeled(text string) (parsedClassification, error) {
	p := parsedClassification{}
	found := false
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(label)) {
		case "ENGAGEMENT":
			engagement, ok := normalizeEngagement(value)
			if !ok {
				return parsedClassification{}, fmt.Errorf("unknown engagement %q: %w", value, domain.ErrParse)
			}
			p.Engagement = engagement
			found = true
		case "EVIDENCE":
			p.Evidence = strings.Trim(value, `"«»`)
		case "FOREIGN_ELEMENT":
			p.Signals.ForeignElement = isAffirmative(value)
		case "TOPIC_OVERLAP_ONLY":
			p.Signals.TopicOverlapOnly = isAffirmative(value)
		}
	}
	if !found {
		return parsedClassification{}, fmt.Errorf("no engagement label in classifier output: %w", domain.ErrParse)
	}
	return p, nil
}

func normalizeEngagement(s string) (domain.EngagementLevel, bool) {
	switch domain.EngagementLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case domain.EngagementRuled:
		return domain.EngagementRuled, true
	case domain.EngagementDiscussed:
		return domain.EngagementDiscussed, true
	case domain.EngagementMentioned:
		return domain.EngagementMentioned, true
	case domain.EngagementNotAddressed:
		return domain.EngagementNotAddressed, true
	}
	return "", false
}

func isAffirmative(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "TRUE", "1", "ΝΑΙ":
		return true
	}
	return false
}
