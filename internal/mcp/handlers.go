package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/docqa/internal/index"
	"github.com/mike-a-ellis/docqa/internal/service"
	"github.com/mike-a-ellis/docqa/internal/session"
)

// QA is the slice of the application service the tools need.
type QA interface {
	SessionCount() int
	Retrieve(ctx context.Context, sessionID, query string, k int, minScore *float64) ([]index.RetrievedUnit, error)
	Ask(ctx context.Context, sessionID, question string, k int, minScore *float64) (*service.Answer, error)
}

// makeAskHandler creates the ask_docs tool handler: retrieve evidence for
// the question and synthesize a structured, evidence-backed answer.
func makeAskHandler(svc QA) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := svc.Ask(ctx, input.SessionID, input.Question, input.MaxResults, input.MinScore)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, AskOutput{}, fmt.Errorf("unknown session %q", input.SessionID)
			}
			if errors.Is(err, session.ErrInvalidSessionID) {
				return nil, AskOutput{}, fmt.Errorf("invalid session id %q", input.SessionID)
			}
			return nil, AskOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		return nil, AskOutput{
			Answer:     answer.Answer,
			Rationale:  answer.Rationale,
			Evidence:   answer.Evidence,
			Confidence: answer.Confidence,
			Sources:    toSourceUnits(answer.Sources),
		}, nil
	}
}

// makeSearchHandler creates the search_docs tool handler: semantic search
// over the session's units without answer synthesis.
func makeSearchHandler(svc QA) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		units, err := svc.Retrieve(ctx, input.SessionID, input.Query, input.MaxResults, input.MinScore)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, SearchOutput{}, fmt.Errorf("unknown session %q", input.SessionID)
			}
			if errors.Is(err, session.ErrInvalidSessionID) {
				return nil, SearchOutput{}, fmt.Errorf("invalid session id %q", input.SessionID)
			}
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(units) == 0 {
			return nil, SearchOutput{
				Results: []SourceUnit{},
				Message: "No matching units found. Try broader search terms.",
			}, nil
		}
		return nil, SearchOutput{Results: toSourceUnits(units)}, nil
	}
}

// makeStatusHandler creates the get_status tool handler.
func makeStatusHandler(svc QA) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		return nil, StatusOutput{Sessions: svc.SessionCount()}, nil
	}
}
