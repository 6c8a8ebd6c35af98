package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/mike-a-ellis/docqa/internal/ingest"
)

// NoRelevantAnswer is the per-question response when retrieval finds nothing
// relevant in the fetched document.
const NoRelevantAnswer = "Could not find relevant information to answer the question."

// BatchAsk fetches a document by URL, ingests it into a throwaway session and
// answers each question from its content in order. The session is discarded
// when the call returns; nothing persists across batch runs.
func (s *Service) BatchAsk(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions provided")
	}

	upload, closeBody, err := s.fetchDocument(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	defer closeBody()

	sess := s.registry.Start()
	defer func() {
		if err := s.registry.End(sess.ID); err != nil {
			s.logger.Warn("failed to discard batch session", "session", sess.ID, "error", err)
		}
	}()

	if _, err := s.pipeline.Ingest(ctx, sess, []ingest.Upload{upload}); err != nil {
		return nil, fmt.Errorf("ingest document: %w", err)
	}

	answers := make([]string, len(questions))
	for i, question := range questions {
		answer, err := s.Ask(ctx, sess.ID, question, 0, nil)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if len(answer.Sources) == 0 {
			answers[i] = NoRelevantAnswer
			continue
		}
		answers[i] = answer.Answer
	}

	s.logger.Info("batch answered", "questions", len(questions), "url", documentURL)
	return answers, nil
}

func (s *Service) fetchDocument(ctx context.Context, rawURL string) (ingest.Upload, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ingest.Upload{}, nil, fmt.Errorf("build document request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ingest.Upload{}, nil, fmt.Errorf("fetch document: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return ingest.Upload{}, nil, fmt.Errorf("fetch document: unexpected status %s", resp.Status)
	}
	upload := ingest.Upload{Name: documentName(rawURL), Reader: resp.Body}
	return upload, func() { resp.Body.Close() }, nil
}

// documentName derives an upload name from the URL path so extraction picks
// the right format. URLs without a recognizable extension are treated as
// PDFs, the dominant case for remotely hosted documents.
func documentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document.pdf"
	}
	name := path.Base(u.Path)
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".md", ".markdown", ".pdf":
		return name
	}
	return "document.pdf"
}
