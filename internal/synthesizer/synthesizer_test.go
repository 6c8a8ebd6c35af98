package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/index"
)

// fakeGenerator returns a canned response or error and records the prompt.
type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func retrievedUnits() []index.RetrievedUnit {
	return []index.RetrievedUnit{
		{Unit: chunker.TextUnit{ID: "doc1:0", DocumentID: "doc1", Text: "The sky is blue."}, Score: 0.9},
		{Unit: chunker.TextUnit{ID: "doc1:1", DocumentID: "doc1", Text: "Grass is green."}, Score: 0.5},
	}
}

// TestSynthesize_ValidResponse verifies the happy path: parsed answer,
// resolved citations, confidence from the strongest retrieval score.
func TestSynthesize_ValidResponse(t *testing.T) {
	gen := &fakeGenerator{
		response: `{"answer": "The sky is blue.", "rationale": "Stated directly in doc1:0.", "evidence": [{"source_id": "doc1:0", "quoted_text": "The sky is blue."}]}`,
	}
	s := New(gen)

	answer, err := s.Synthesize(context.Background(), "What color is the sky?", retrievedUnits())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if answer.Answer != "The sky is blue." {
		t.Errorf("Unexpected answer: %q", answer.Answer)
	}
	if len(answer.Evidence) != 1 {
		t.Fatalf("Expected 1 evidence span, got %d", len(answer.Evidence))
	}
	if answer.Evidence[0].SourceID != "doc1:0" {
		t.Errorf("Unexpected source id: %q", answer.Evidence[0].SourceID)
	}
	if answer.Evidence[0].DocumentID != "doc1" {
		t.Errorf("Expected document id filled in, got %q", answer.Evidence[0].DocumentID)
	}
	if answer.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", answer.Confidence)
	}

	// Prompt must carry each unit tagged with its source id
	if !strings.Contains(gen.prompt, "[source_id: doc1:0]") {
		t.Error("Prompt missing source id tag for doc1:0")
	}
	if !strings.Contains(gen.prompt, "Grass is green.") {
		t.Error("Prompt missing unit text")
	}
}

// TestSynthesize_EmptyEvidence verifies synthesis without retrieved units is
// refused before any generation call.
func TestSynthesize_EmptyEvidence(t *testing.T) {
	gen := &fakeGenerator{response: `{"answer": "x", "rationale": "y"}`}
	s := New(gen)

	_, err := s.Synthesize(context.Background(), "question", nil)
	if !errors.Is(err, ErrEmptyEvidence) {
		t.Errorf("Expected ErrEmptyEvidence, got %v", err)
	}
	if gen.prompt != "" {
		t.Error("Generator should not be called without evidence")
	}
}

// TestSynthesize_MalformedResponses verifies unparseable or incomplete model
// output is rejected, never patched into a partial answer.
func TestSynthesize_MalformedResponses(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "The sky is blue, probably."},
		{"missing answer", `{"rationale": "because"}`},
		{"missing rationale", `{"answer": "blue"}`},
		{"blank answer", `{"answer": "  ", "rationale": "because"}`},
		{"truncated json", `{"answer": "blue", "rat`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeGenerator{response: tc.response})
			_, err := s.Synthesize(context.Background(), "question", retrievedUnits())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

// TestSynthesize_CodeFencedResponse verifies a fenced JSON payload parses.
func TestSynthesize_CodeFencedResponse(t *testing.T) {
	gen := &fakeGenerator{
		response: "```json\n{\"answer\": \"blue\", \"rationale\": \"doc1:0 says so\", \"evidence\": []}\n```",
	}
	s := New(gen)

	answer, err := s.Synthesize(context.Background(), "question", retrievedUnits())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if answer.Answer != "blue" {
		t.Errorf("Unexpected answer: %q", answer.Answer)
	}
}

// TestSynthesize_HallucinatedCitationDropped verifies a citation referencing
// an unknown source id is discarded, the omission is noted in the rationale,
// and the answer itself is preserved.
func TestSynthesize_HallucinatedCitationDropped(t *testing.T) {
	gen := &fakeGenerator{
		response: `{"answer": "blue", "rationale": "from the sources", "evidence": [` +
			`{"source_id": "doc1:0", "quoted_text": "The sky is blue."},` +
			`{"source_id": "doc9:4", "quoted_text": "invented"}]}`,
	}
	s := New(gen)

	answer, err := s.Synthesize(context.Background(), "question", retrievedUnits())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if answer.Answer != "blue" {
		t.Errorf("Answer should survive citation filtering, got %q", answer.Answer)
	}
	if len(answer.Evidence) != 1 {
		t.Fatalf("Expected 1 surviving evidence span, got %d", len(answer.Evidence))
	}
	if answer.Evidence[0].SourceID != "doc1:0" {
		t.Errorf("Wrong span survived: %q", answer.Evidence[0].SourceID)
	}
	if !strings.Contains(answer.Rationale, "1 citation") || !strings.Contains(answer.Rationale, "discarded") {
		t.Errorf("Rationale missing omission note: %q", answer.Rationale)
	}
}

// TestSynthesize_GenerationError verifies generator failures propagate.
func TestSynthesize_GenerationError(t *testing.T) {
	wantErr := errors.New("model overloaded")
	s := New(&fakeGenerator{err: wantErr})

	_, err := s.Synthesize(context.Background(), "question", retrievedUnits())
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected generator error to propagate, got %v", err)
	}
}

// TestNoEvidenceAnswer verifies the canned no-answer shape.
func TestNoEvidenceAnswer(t *testing.T) {
	answer := NoEvidenceAnswer()
	if answer.Answer != "insufficient evidence" {
		t.Errorf("Unexpected answer: %q", answer.Answer)
	}
	if len(answer.Evidence) != 0 {
		t.Errorf("Expected no evidence, got %d spans", len(answer.Evidence))
	}
	if answer.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", answer.Confidence)
	}
}
