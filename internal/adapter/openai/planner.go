package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"caselaw-orchestrator/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

// maxQueriesPerRound caps how many searches the planner may request in one
// round. More than a few per round means the model is guessing, not
// refining.
const maxQueriesPerRound = 3

const searchCasesTool = "search_cases"

const plannerSystemPrompt = `You are a legal research planner for Cypriot case law.
The user's question has already been searched verbatim; you will receive those
results. Your job is to decide whether differently-angled searches would
surface cases the verbatim search missed: synonyms, the underlying legal
doctrine, related statutory provisions, Greek or English phrasing the courts
actually use.

Call search_cases for each additional search worth running (at most 3 per
round). When the results already cover the question, reply without calling
any tool and briefly say the research is complete. Do not repeat searches
that already ran.`

var searchCasesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Search text, in the language the courts use for this topic (usually Greek)"
		},
		"court": {
			"type": "string",
			"enum": ["aad", "supreme", "courtOfAppeal", "supremeAdministrative", "administrative", "administrativeIP", "epa", "aap", "dioikitiko"],
			"description": "Restrict to one court; omit to search all courts"
		},
		"year_from": {"type": "integer"},
		"year_to": {"type": "integer"}
	},
	"required": ["query"]
}`)

// Planner implements domain.Planner as a tool-calling conversation.
type Planner struct {
	client *Client
	model  string
	logger *slog.Logger
}

// NewPlanner creates the research planner.
func NewPlanner(client *Client, model string, logger *slog.Logger) *Planner {
	return &Planner{client: client, model: model, logger: logger}
}

func (p *Planner) Start(question string) domain.PlanSession {
	return &planSession{
		planner: p,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: plannerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	}
}

type planSession struct {
	planner  *Planner
	messages []openai.ChatCompletionMessage
	// pendingCalls are the tool-call ids awaiting results from the previous
	// round.
	pendingCalls []string
}

func (s *planSession) Next(ctx context.Context, feedback string) ([]domain.Query, domain.TokenUsage, error) {
	s.absorbFeedback(feedback)

	if err := s.planner.client.wait(ctx); err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := s.planner.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.planner.model,
		Messages: s.messages,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        searchCasesTool,
				Description: "Search the case-law index",
				Parameters:  searchCasesSchema,
			},
		}},
	})
	if err != nil {
		return nil, domain.TokenUsage{}, classifyAPIError(err, domain.ErrRateLimited, domain.ErrBackendUnavailable)
	}
	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 {
		return nil, usage, fmt.Errorf("empty planner response: %w", domain.ErrBackendUnavailable)
	}

	msg := resp.Choices[0].Message
	s.messages = append(s.messages, msg)
	s.pendingCalls = s.pendingCalls[:0]

	queries := s.parseToolCalls(msg.ToolCalls)
	if len(queries) == 0 && len(msg.ToolCalls) == 0 {
		// Some models ignore tool schemas and answer with JSON in the
		// content. Accept that shape before concluding the planner is done.
		queries = parseLegacyQueries(msg.Content)
	}
	if len(queries) > maxQueriesPerRound {
		queries = queries[:maxQueriesPerRound]
	}
	return queries, usage, nil
}

// absorbFeedback answers the previous round's tool calls so the conversation
// stays well-formed for the next completion. With no calls outstanding (the
// raw verbatim round, or a legacy-shaped previous round) the feedback goes in
// as a user message instead.
func (s *planSession) absorbFeedback(feedback string) {
	if len(s.pendingCalls) == 0 {
		if feedback != "" {
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: feedback,
			})
		}
		return
	}
	if feedback == "" {
		feedback = "No results."
	}
	for i, callID := range s.pendingCalls {
		content := feedback
		if i > 0 {
			content = "Results are combined with the first search's results above."
		}
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: callID,
			Content:    content,
		})
	}
	s.pendingCalls = s.pendingCalls[:0]
}

func (s *planSession) parseToolCalls(calls []openai.ToolCall) []domain.Query {
	var queries []domain.Query
	for _, call := range calls {
		if call.Function.Name != searchCasesTool {
			continue
		}
		var args struct {
			Query    string `json:"query"`
			Court    string `json:"court"`
			YearFrom int    `json:"year_from"`
			YearTo   int    `json:"year_to"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			s.planner.logger.Warn("planner_tool_call_unparsable",
				slog.String("arguments", call.Function.Arguments),
				slog.String("error", err.Error()))
			continue
		}
		if strings.TrimSpace(args.Query) == "" {
			continue
		}
		s.pendingCalls = append(s.pendingCalls, call.ID)
		queries = append(queries, domain.Query{
			Text:     args.Query,
			Court:    domain.CourtLevel(args.Court),
			YearFrom: args.YearFrom,
			YearTo:   args.YearTo,
		})
	}
	return queries
}

// parseLegacyQueries extracts a JSON array of {"query": ...} objects from
// free text. Legacy shape; tool calls are the expected path.
func parseLegacyQueries(content string) []domain.Query {
	open := strings.Index(content, "[")
	closing := strings.LastIndex(content, "]")
	if open < 0 || closing <= open {
		return nil
	}
	var items []struct {
		Query    string `json:"query"`
		Court    string `json:"court"`
		YearFrom int    `json:"year_from"`
		YearTo   int    `json:"year_to"`
	}
	if err := json.Unmarshal([]byte(content[open:closing+1]), &items); err != nil {
		return nil
	}
	var queries []domain.Query
	for _, item := range items {
		if strings.TrimSpace(item.Query) == "" {
			continue
		}
		queries = append(queries, domain.Query{
			Text:     item.Query,
			Court:    domain.CourtLevel(item.Court),
			YearFrom: item.YearFrom,
			YearTo:   item.YearTo,
		})
	}
	return queries
}
