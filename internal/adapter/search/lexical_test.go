package search

import (
	"context"
	"errors"
	"testing"

	"caselaw-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLexicalIndex struct {
	orHits     []domain.RankedHit
	orErr      error
	phraseHits []domain.RankedHit
	phraseErr  error

	orTokens       []string
	phrase         string
	orDeadline     bool
	phraseDeadline bool
}

func (i *stubLexicalIndex) QueryOr(ctx context.Context, tokens []string, _ domain.Query, _ int) ([]domain.RankedHit, error) {
	i.orTokens = tokens
	_, i.orDeadline = ctx.Deadline()
	return i.orHits, i.orErr
}

func (i *stubLexicalIndex) QueryPhrase(ctx context.Context, phrase string, _ domain.Query, _ int) ([]domain.RankedHit, error) {
	i.phrase = phrase
	_, i.phraseDeadline = ctx.Deadline()
	return i.phraseHits, i.phraseErr
}

func TestLexicalBackend_TokenizesOrQuery(t *testing.T) {
	index := &stubLexicalIndex{orHits: []domain.RankedHit{{DocID: "a", Score: 3.1}}}
	b := NewLexicalBackend(index, 0, testLogger())

	hits, err := b.Search(context.Background(), domain.Query{Text: "παραγραφή αδικοπραξία limitation"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"παραγραφή", "αδικοπραξία", "limitation"}, index.orTokens)
	assert.Empty(t, index.phrase, "a plain topical query gets no phrase pass")
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Rank)
}

func TestLexicalBackend_ReferenceQueryGetsPhrasePass(t *testing.T) {
	index := &stubLexicalIndex{
		phraseHits: []domain.RankedHit{{DocID: "exact", Score: 9.0}},
		orHits:     []domain.RankedHit{{DocID: "noise", Score: 4.0}, {DocID: "exact", Score: 3.0}},
	}
	b := NewLexicalBackend(index, 0, testLogger())

	hits, err := b.Search(context.Background(), domain.Query{Text: "Έφεση 41/2015"}, 10)
	require.NoError(t, err)
	assert.Equal(t, "Έφεση 41/2015", index.phrase)

	// The phrase hit leads and is not duplicated by the OR pass.
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].DocID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, "noise", hits[1].DocID)
}

func TestLexicalBackend_LongQueryWithDigitsIsNotReference(t *testing.T) {
	index := &stubLexicalIndex{orHits: []domain.RankedHit{{DocID: "a"}}}
	b := NewLexicalBackend(index, 0, testLogger())

	_, err := b.Search(context.Background(), domain.Query{
		Text: "damages awarded for breach of contract signed in 2015 involving construction works",
	}, 10)
	require.NoError(t, err)
	assert.Empty(t, index.phrase)
}

func TestLexicalBackend_OutageReturnsSentinel(t *testing.T) {
	index := &stubLexicalIndex{orErr: errors.New("connection refused")}
	b := NewLexicalBackend(index, 0, testLogger())

	hits, err := b.Search(context.Background(), domain.Query{Text: "limitation"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Failed)
	assert.Equal(t, "lexical index unavailable", hits[0].FailureReason)
}

func TestLexicalBackend_PhraseSurvivesOrOutage(t *testing.T) {
	index := &stubLexicalIndex{
		phraseHits: []domain.RankedHit{{DocID: "exact", Score: 9.0}},
		orErr:      errors.New("timeout"),
	}
	b := NewLexicalBackend(index, 0, testLogger())

	hits, err := b.Search(context.Background(), domain.Query{Text: "41/2015"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exact", hits[0].DocID)
	assert.False(t, hits[0].Failed)
}

func TestLexicalBackend_QueriesCarryDeadline(t *testing.T) {
	index := &stubLexicalIndex{
		phraseHits: []domain.RankedHit{{DocID: "exact", Score: 9.0}},
		orHits:     []domain.RankedHit{{DocID: "noise", Score: 4.0}},
	}
	b := NewLexicalBackend(index, 0, testLogger())

	_, err := b.Search(context.Background(), domain.Query{Text: "41/2015"}, 10)
	require.NoError(t, err)
	assert.True(t, index.phraseDeadline, "phrase pass must carry a deadline")
	assert.True(t, index.orDeadline, "OR pass must carry a deadline")
}

func TestLexicalBackend_EmptyQuery(t *testing.T) {
	b := NewLexicalBackend(&stubLexicalIndex{}, 0, testLogger())
	hits, err := b.Search(context.Background(), domain.Query{Text: "  ..  "}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
