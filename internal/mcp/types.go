// Package mcp exposes the document Q&A service over the Model Context
// Protocol.
package mcp

import (
	"github.com/mike-a-ellis/docqa/internal/index"
	"github.com/mike-a-ellis/docqa/internal/synthesizer"
)

// AskInput defines the input parameters for the ask_docs tool.
type AskInput struct {
	// SessionID identifies the session whose documents are queried.
	SessionID string `json:"session_id" jsonschema:"required,description=The session whose uploaded documents should answer the question"`
	// Question is the natural-language question.
	Question string `json:"question" jsonschema:"required,description=The natural-language question to answer from the session's documents"`
	// MaxResults is the maximum number of evidence units to retrieve.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of evidence units to retrieve"`
	// MinScore is the minimum relevance threshold. Omitting it uses the
	// service default; an explicit value is honored as given, zero included.
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"default=0.2,description=Minimum relevance score threshold; omit to use the service default"`
}

// AskOutput contains the structured answer.
type AskOutput struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// Rationale explains how the answer follows from the evidence.
	Rationale string `json:"rationale"`
	// Evidence lists the cited excerpts, each resolving to a retrieved unit.
	Evidence []synthesizer.EvidenceSpan `json:"evidence"`
	// Confidence is the strongest retrieval score backing the answer.
	Confidence float64 `json:"confidence"`
	// Sources lists the retrieved units the answer was grounded on.
	Sources []SourceUnit `json:"sources"`
}

// SourceUnit is a retrieved unit summarized for tool output.
type SourceUnit struct {
	UnitID     string  `json:"unit_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// SearchInput defines the input parameters for the search_docs tool.
type SearchInput struct {
	// SessionID identifies the session whose index is searched.
	SessionID string `json:"session_id" jsonschema:"required,description=The session whose index should be searched"`
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query"`
	// MaxResults is the maximum number of units to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of units to return"`
	// MinScore is the minimum relevance threshold. Omitting it uses the
	// service default; an explicit value is honored as given, zero included.
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"default=0.2,description=Minimum relevance score threshold; omit to use the service default"`
}

// SearchOutput contains the search results.
type SearchOutput struct {
	// Results is the list of matching units ordered by descending score.
	Results []SourceUnit `json:"results"`
	// Message provides informational context (e.g. nothing matched).
	Message string `json:"message,omitempty"`
}

// StatusInput defines the input for the get_status tool. No parameters.
type StatusInput struct{}

// StatusOutput reports service status.
type StatusOutput struct {
	// Sessions is the number of live sessions.
	Sessions int `json:"sessions"`
}

func toSourceUnits(units []index.RetrievedUnit) []SourceUnit {
	sources := make([]SourceUnit, len(units))
	for i, u := range units {
		sources[i] = SourceUnit{
			UnitID:     u.Unit.ID,
			DocumentID: u.Unit.DocumentID,
			Score:      u.Score,
			Text:       u.Unit.Text,
		}
	}
	return sources
}
