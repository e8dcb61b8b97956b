package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResearch struct {
	events []usecase.StreamEvent
	output *usecase.ResearchOutput
	err    error
}

func (s *stubResearch) Execute(_ context.Context, _ usecase.ResearchInput) (*usecase.ResearchOutput, error) {
	return s.output, s.err
}

func (s *stubResearch) Stream(_ context.Context, _ usecase.ResearchInput) <-chan usecase.StreamEvent {
	ch := make(chan usecase.StreamEvent, len(s.events))
	for _, e := range s.events {
		ch <- e
	}
	close(ch)
	return ch
}

type stubSearch struct {
	got     domain.Query
	limit   int
	results []*domain.CandidateDocument
	err     error
}

func (s *stubSearch) Execute(_ context.Context, q domain.Query, limit int) ([]*domain.CandidateDocument, error) {
	s.got = q
	s.limit = limit
	return s.results, s.err
}

type stubStore struct {
	text *domain.CaseText
	err  error
}

func (s *stubStore) GetByIDs(_ context.Context, _ []string) ([]domain.CaseText, error) {
	return nil, errors.New("unused")
}

func (s *stubStore) FetchText(_ context.Context, _ string) (*domain.CaseText, error) {
	return s.text, s.err
}

func TestStreamResearch_EmitsSSE(t *testing.T) {
	research := &stubResearch{events: []usecase.StreamEvent{
		{Kind: usecase.StreamEventKindSearching, Payload: usecase.SearchingPayload{Round: 1, Queries: []string{"q"}}},
		{Kind: usecase.StreamEventKindDone, Payload: usecase.DonePayload{SessionID: "s-1", Rounds: 1}},
	}}
	h := NewHandler(research, &stubSearch{}, &stubStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/research/stream", strings.NewReader(`{"question": "q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.StreamResearch(e.NewContext(req, rec)))

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "event: searching\n")
	assert.Contains(t, body, `"round":1`)
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"session_id":"s-1"`)
	assert.True(t, strings.HasSuffix(body, "\n\n"), "events are newline-delimited")
}

func TestSearch_ParsesQueryParams(t *testing.T) {
	search := &stubSearch{results: []*domain.CandidateDocument{
		{DocID: "a", Title: "A", Court: domain.CourtSupreme, Year: 2019, FusedScore: 0.032},
	}}
	h := NewHandler(&stubResearch{}, search, &stubStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=limitation&court=supreme&year_from=2000&year_to=2020&limit=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Search(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "limitation", search.got.Text)
	assert.Equal(t, domain.CourtSupreme, search.got.Court)
	assert.Equal(t, 2000, search.got.YearFrom)
	assert.Equal(t, 2020, search.got.YearTo)
	assert.Equal(t, 5, search.limit)
	assert.Contains(t, rec.Body.String(), `"doc_id":"a"`)
}

func TestSearch_BadQueryRejected(t *testing.T) {
	search := &stubSearch{err: fmt.Errorf("query text is required")}
	h := NewHandler(&stubResearch{}, search, &stubStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Search(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument_NotFound(t *testing.T) {
	store := &stubStore{err: fmt.Errorf("document x: %w", domain.ErrNotFound)}
	h := NewHandler(&stubResearch{}, &stubSearch{}, store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("x")

	require.NoError(t, h.GetDocument(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocument_ReturnsBody(t *testing.T) {
	store := &stubStore{text: &domain.CaseText{
		DocID: "a", Title: "A", Court: domain.CourtSupreme, Year: 2019, Body: "full text",
	}}
	h := NewHandler(&stubResearch{}, &stubSearch{}, store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/a", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("a")

	require.NoError(t, h.GetDocument(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"body":"full text"`)
}
