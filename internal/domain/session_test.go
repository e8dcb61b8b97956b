package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAdmit_DeduplicatesAcrossRounds(t *testing.T) {
	s := NewSearchSession()

	fresh := s.Admit([]*CandidateDocument{
		{DocID: "case-1", Title: "First", DenseScore: 0.8},
		{DocID: "case-2", Title: "Second", DenseScore: 0.7},
	})
	require.Len(t, fresh, 2)

	// Second round surfaces case-1 again with a lower score.
	fresh = s.Admit([]*CandidateDocument{
		{DocID: "case-1", DenseScore: 0.5},
	})
	assert.Empty(t, fresh, "a repeat sighting is never a new candidate")
	assert.Len(t, s.Pool(), 2)
	assert.True(t, s.Seen("case-1"))
}

func TestSessionAdmit_KeepsMaximumScores(t *testing.T) {
	s := NewSearchSession()
	s.Admit([]*CandidateDocument{
		{DocID: "case-1", DenseScore: 0.5, FusedScore: 0.016, LexicalRank: 7},
	})
	s.Admit([]*CandidateDocument{
		{DocID: "case-1", DenseScore: 0.9, FusedScore: 0.010, LexicalRank: 2, Snippet: "better chunk"},
	})

	c := s.Pool()[0]
	assert.InDelta(t, 0.9, c.DenseScore, 1e-9, "higher dense score wins")
	assert.InDelta(t, 0.016, c.FusedScore, 1e-9, "fused score is never lowered")
	assert.Equal(t, 2, c.LexicalRank, "better lexical rank wins")
	assert.Equal(t, "better chunk", c.Snippet)
}

func TestSessionAdmit_IgnoresEmptyIDs(t *testing.T) {
	s := NewSearchSession()
	fresh := s.Admit([]*CandidateDocument{{DocID: ""}})
	assert.Empty(t, fresh)
	assert.Empty(t, s.Pool())
}

func TestSessionKept_FiltersByFlag(t *testing.T) {
	s := NewSearchSession()
	s.Admit([]*CandidateDocument{
		{DocID: "a"}, {DocID: "b"}, {DocID: "c"},
	})
	s.Pool()[1].Kept = true

	kept := s.Kept()
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].DocID)
}
