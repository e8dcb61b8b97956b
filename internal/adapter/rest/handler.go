// Package rest exposes the research pipeline over HTTP: an SSE stream for
// interactive research turns, plus plain JSON endpoints for one-shot search
// and document retrieval.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/usecase"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	research usecase.ResearchUsecase
	search   usecase.SearchUsecase
	store    domain.DocumentStore
}

func NewHandler(research usecase.ResearchUsecase, search usecase.SearchUsecase, store domain.DocumentStore) *Handler {
	return &Handler{
		research: research,
		search:   search,
		store:    store,
	}
}

// Register wires the routes onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/research/stream", h.StreamResearch)
	e.POST("/v1/research", h.Research)
	e.GET("/v1/search", h.Search)
	e.GET("/v1/documents/:id", h.GetDocument)
}

// researchRequest is the body of both research endpoints.
type researchRequest struct {
	Question string `json:"question"`
	Court    string `json:"court,omitempty"`
	YearFrom int    `json:"year_from,omitempty"`
	YearTo   int    `json:"year_to,omitempty"`
}

func (r researchRequest) toInput() usecase.ResearchInput {
	return usecase.ResearchInput{
		Question: r.Question,
		Court:    domain.CourtLevel(r.Court),
		YearFrom: r.YearFrom,
		YearTo:   r.YearTo,
	}
}

// StreamResearch runs a research turn as Server-Sent Events. Each event's
// SSE event name is the stream kind, the data is the JSON payload.
// (POST /v1/research/stream)
func (h *Handler) StreamResearch(ctx echo.Context) error {
	var req researchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	reqCtx := ctx.Request().Context()
	for event := range h.research.Stream(reqCtx, req.toInput()) {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			data = []byte(`{"category":"internal_error"}`)
			event.Kind = usecase.StreamEventKindError
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
			// Client went away; the usecase notices via the request context.
			return nil
		}
		resp.Flush()
	}
	return nil
}

// Research runs a research turn and returns the collected result.
// (POST /v1/research)
func (h *Handler) Research(ctx echo.Context) error {
	var req researchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	output, err := h.research.Execute(ctx.Request().Context(), req.toInput())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, output)
}

// searchResult is one hit of the plain search endpoint.
type searchResult struct {
	DocID      string            `json:"doc_id"`
	Title      string            `json:"title"`
	Court      domain.CourtLevel `json:"court,omitempty"`
	Year       int               `json:"year,omitempty"`
	FusedScore float64           `json:"fused_score"`
	DenseScore float64           `json:"dense_score,omitempty"`
	Snippet    string            `json:"snippet,omitempty"`
}

// Search runs a one-shot hybrid search without the research loop.
// (GET /v1/search?q=...&court=...&year_from=...&year_to=...&limit=...)
func (h *Handler) Search(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	yearFrom, _ := strconv.Atoi(ctx.QueryParam("year_from"))
	yearTo, _ := strconv.Atoi(ctx.QueryParam("year_to"))
	q := domain.Query{
		Text:     ctx.QueryParam("q"),
		Court:    domain.CourtLevel(ctx.QueryParam("court")),
		YearFrom: yearFrom,
		YearTo:   yearTo,
	}

	fused, err := h.search.Execute(ctx.Request().Context(), q, limit)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	results := make([]searchResult, 0, len(fused))
	for _, c := range fused {
		results = append(results, searchResult{
			DocID:      c.DocID,
			Title:      c.Title,
			Court:      c.Court,
			Year:       c.Year,
			FusedScore: c.FusedScore,
			DenseScore: c.DenseScore,
			Snippet:    c.Snippet,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

// GetDocument returns one stored decision.
// (GET /v1/documents/:id)
func (h *Handler) GetDocument(ctx echo.Context) error {
	id := ctx.Param("id")
	text, err := h.store.FetchText(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch document"})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"doc_id": text.DocID,
		"title":  text.Title,
		"court":  text.Court,
		"year":   text.Year,
		"body":   text.Body,
	})
}
