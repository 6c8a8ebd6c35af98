// Package synthesizer assembles evidence-backed answers from retrieved text
// units and a generative model, validating the model output before anything
// is surfaced.
package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mike-a-ellis/docqa/internal/index"
)

var (
	// ErrEmptyEvidence indicates a synthesis attempt without retrieved
	// units. No answer is ever synthesized without evidence.
	ErrEmptyEvidence = errors.New("no evidence to synthesize from")
	// ErrMalformedResponse indicates model output that could not be parsed
	// into the required structured shape. No partial answer is surfaced.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// EvidenceSpan is a cited excerpt from a retrieved unit supporting part of
// the answer.
type EvidenceSpan struct {
	SourceID   string `json:"source_id"`
	DocumentID string `json:"document_id,omitempty"`
	Quote      string `json:"quoted_text"`
}

// StructuredAnswer is the validated result of one synthesis call. Transient,
// not persisted beyond the response.
type StructuredAnswer struct {
	Answer     string         `json:"answer"`
	Rationale  string         `json:"rationale"`
	Evidence   []EvidenceSpan `json:"evidence"`
	Confidence float64        `json:"confidence"`
}

// NoEvidenceAnswer is the explicit no-answer response returned when nothing
// relevant was retrieved for a question.
func NoEvidenceAnswer() *StructuredAnswer {
	return &StructuredAnswer{
		Answer:    "insufficient evidence",
		Rationale: "No relevant text units were retrieved to answer the question.",
		Evidence:  []EvidenceSpan{},
	}
}

// Synthesizer binds a question to retrieved evidence, invokes the generative
// capability once per call, and validates the structured result.
type Synthesizer struct {
	gen Generator
}

// New creates a synthesizer over the given generator.
func New(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize produces a structured answer for the question from the retrieved
// units. Evidence entries citing a source not among the retrieved units are
// dropped and the omission recorded in the rationale; that is the only
// internally absorbed condition, every other failure surfaces unchanged.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, retrieved []index.RetrievedUnit) (*StructuredAnswer, error) {
	if len(retrieved) == 0 {
		return nil, ErrEmptyEvidence
	}

	prompt := buildPrompt(question, retrieved)
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	answer, err := parseAnswer(raw)
	if err != nil {
		return nil, err
	}

	answer.Evidence, answer.Rationale = filterCitations(answer.Evidence, answer.Rationale, retrieved)

	// Confidence reflects the strongest retrieval score backing the answer.
	for _, unit := range retrieved {
		if unit.Score > answer.Confidence {
			answer.Confidence = unit.Score
		}
	}
	return answer, nil
}

// buildPrompt concatenates the evidence text, tagging each unit with its
// identity so the model can cite it by source id.
func buildPrompt(question string, retrieved []index.RetrievedUnit) string {
	var b strings.Builder
	b.WriteString("Context passages, each tagged with its source id:\n\n")
	for _, r := range retrieved {
		fmt.Fprintf(&b, "[source_id: %s] (document %s)\n%s\n\n---\n\n",
			r.Unit.ID, r.Unit.DocumentID, r.Unit.Text)
	}
	fmt.Fprintf(&b, "Question: %q\n\n", question)
	b.WriteString(`Based ONLY on the context passages above, perform three tasks:
1. Answer the question.
2. Provide a brief rationale explaining how you arrived at the answer, citing source ids.
3. Quote the passages that support the answer.

Respond with a single raw JSON object, no markdown, in this shape:
{"answer": "...", "rationale": "...", "evidence": [{"source_id": "...", "quoted_text": "..."}]}

Only cite source ids that appear in the context passages.`)
	return b.String()
}

// rawAnswer is the untrusted payload shape requested from the model.
type rawAnswer struct {
	Answer    string         `json:"answer"`
	Rationale string         `json:"rationale"`
	Evidence  []EvidenceSpan `json:"evidence"`
}

// parseAnswer validates the raw model output into a structured answer.
// The payload is untrusted: anything that does not parse into the required
// shape is rejected, never patched up.
func parseAnswer(raw string) (*StructuredAnswer, error) {
	cleaned := stripCodeFence(raw)

	var parsed rawAnswer
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return nil, fmt.Errorf("%w: missing answer field", ErrMalformedResponse)
	}
	if strings.TrimSpace(parsed.Rationale) == "" {
		return nil, fmt.Errorf("%w: missing rationale field", ErrMalformedResponse)
	}
	if parsed.Evidence == nil {
		parsed.Evidence = []EvidenceSpan{}
	}

	return &StructuredAnswer{
		Answer:    strings.TrimSpace(parsed.Answer),
		Rationale: strings.TrimSpace(parsed.Rationale),
		Evidence:  parsed.Evidence,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// emit despite being asked for raw JSON.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// filterCitations drops evidence entries whose source id does not resolve to
// a retrieved unit and annotates the rationale with the omission. Valid
// entries gain the document id of their source unit.
func filterCitations(evidence []EvidenceSpan, rationale string, retrieved []index.RetrievedUnit) ([]EvidenceSpan, string) {
	units := make(map[string]index.RetrievedUnit, len(retrieved))
	for _, r := range retrieved {
		units[r.Unit.ID] = r
	}

	kept := make([]EvidenceSpan, 0, len(evidence))
	dropped := 0
	for _, span := range evidence {
		unit, ok := units[span.SourceID]
		if !ok {
			dropped++
			continue
		}
		span.DocumentID = unit.Unit.DocumentID
		kept = append(kept, span)
	}

	if dropped > 0 {
		noun := "citations"
		if dropped == 1 {
			noun = "citation"
		}
		rationale = fmt.Sprintf("%s [Note: %d %s referencing sources outside the retrieved evidence %s discarded.]",
			rationale, dropped, noun, pluralWere(dropped))
	}
	return kept, rationale
}

func pluralWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}
