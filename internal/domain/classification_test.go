package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRelevance_Mapping(t *testing.T) {
	assert.Equal(t, RelevanceHigh, EngagementRuled.DefaultRelevance())
	assert.Equal(t, RelevanceMedium, EngagementDiscussed.DefaultRelevance())
	assert.Equal(t, RelevanceLow, EngagementMentioned.DefaultRelevance())
	assert.Equal(t, RelevanceNone, EngagementNotAddressed.DefaultRelevance())
}

func TestResolveRelevance_ForeignElementFloor(t *testing.T) {
	// A decision that never addressed the topic but turns on cross-border
	// facts must never come out as NONE.
	got := ResolveRelevance(EngagementNotAddressed, ClassificationSignals{ForeignElement: true})
	assert.Equal(t, RelevanceMedium, got)

	// The floor never downgrades a stronger default.
	got = ResolveRelevance(EngagementRuled, ClassificationSignals{ForeignElement: true})
	assert.Equal(t, RelevanceHigh, got)
}

func TestResolveRelevance_TopicOverlapCap(t *testing.T) {
	got := ResolveRelevance(EngagementRuled, ClassificationSignals{TopicOverlapOnly: true})
	assert.Equal(t, RelevanceLow, got)

	got = ResolveRelevance(EngagementMentioned, ClassificationSignals{TopicOverlapOnly: true})
	assert.Equal(t, RelevanceLow, got)
}

func TestResolveRelevance_FloorWinsOverCap(t *testing.T) {
	got := ResolveRelevance(EngagementNotAddressed, ClassificationSignals{
		ForeignElement:   true,
		TopicOverlapOnly: true,
	})
	assert.Equal(t, RelevanceMedium, got)
}
