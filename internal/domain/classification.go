package domain

// EngagementLevel describes how substantively a decision treats the queried
// topic.
type EngagementLevel string

const (
	EngagementRuled        EngagementLevel = "RULED"
	EngagementDiscussed    EngagementLevel = "DISCUSSED"
	EngagementMentioned    EngagementLevel = "MENTIONED"
	EngagementNotAddressed EngagementLevel = "NOT_ADDRESSED"
)

// RelevanceLevel describes the research value of a document for the query,
// independent of how deeply the document engages with the topic.
type RelevanceLevel string

const (
	RelevanceHigh   RelevanceLevel = "HIGH"
	RelevanceMedium RelevanceLevel = "MEDIUM"
	RelevanceLow    RelevanceLevel = "LOW"
	RelevanceNone   RelevanceLevel = "NONE"
)

// DefaultRelevance maps engagement depth to the baseline relevance level.
func (e EngagementLevel) DefaultRelevance() RelevanceLevel {
	switch e {
	case EngagementRuled:
		return RelevanceHigh
	case EngagementDiscussed:
		return RelevanceMedium
	case EngagementMentioned:
		return RelevanceLow
	default:
		return RelevanceNone
	}
}

// relevanceOrder supports min/max comparisons between levels.
var relevanceOrder = map[RelevanceLevel]int{
	RelevanceNone:   0,
	RelevanceLow:    1,
	RelevanceMedium: 2,
	RelevanceHigh:   3,
}

func maxRelevance(a, b RelevanceLevel) RelevanceLevel {
	if relevanceOrder[a] >= relevanceOrder[b] {
		return a
	}
	return b
}

func minRelevance(a, b RelevanceLevel) RelevanceLevel {
	if relevanceOrder[a] <= relevanceOrder[b] {
		return a
	}
	return b
}

// ClassificationSignals carries the domain facts extracted alongside the
// engagement label. They feed the relevance override rules.
type ClassificationSignals struct {
	// ForeignElement: the facts involve a cross-jurisdiction or foreign-law
	// element. Such decisions retain research value even when the queried
	// topic itself was not addressed.
	ForeignElement bool
	// TopicOverlapOnly: the decision shares the legal topic but its facts
	// are unrelated to the query scenario.
	TopicOverlapOnly bool
}

// ResolveRelevance applies the override rules on top of the default
// engagement-to-relevance mapping. Foreign-element facts force at least
// MEDIUM; topic-shared-but-factually-unrelated documents are capped at LOW.
// The foreign-element floor wins when both apply.
func ResolveRelevance(e EngagementLevel, sig ClassificationSignals) RelevanceLevel {
	level := e.DefaultRelevance()
	if sig.TopicOverlapOnly {
		level = minRelevance(level, RelevanceLow)
	}
	if sig.ForeignElement {
		level = maxRelevance(level, RelevanceMedium)
	}
	return level
}

// ClassificationResult is the outcome of classifying one kept document.
// It is created once per kept document and never revised.
type ClassificationResult struct {
	DocID         string          `json:"doc_id"`
	Title         string          `json:"title"`
	Engagement    EngagementLevel `json:"engagement_level"`
	Relevance     RelevanceLevel  `json:"relevance_level"`
	EvidenceQuote string          `json:"evidence_quote"`
	TokensUsed    int             `json:"tokens_used"`
	// LowConfidence marks results where the classifier output could not be
	// fully parsed and conservative defaults were substituted.
	LowConfidence bool `json:"low_confidence,omitempty"`
}
