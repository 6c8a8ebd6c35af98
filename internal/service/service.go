// Package service exposes the document Q&A operations shared by the HTTP
// API, the MCP server and the CLI: session lifecycle, document ingestion,
// retrieval and evidence-backed answering.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mike-a-ellis/docqa/internal/index"
	"github.com/mike-a-ellis/docqa/internal/ingest"
	"github.com/mike-a-ellis/docqa/internal/retriever"
	"github.com/mike-a-ellis/docqa/internal/session"
	"github.com/mike-a-ellis/docqa/internal/synthesizer"
)

// Answer is the response to one question: the synthesized structured answer
// plus the retrieved units it was grounded on.
type Answer struct {
	Query      string                     `json:"query"`
	Answer     string                     `json:"answer"`
	Rationale  string                     `json:"rationale"`
	Evidence   []synthesizer.EvidenceSpan `json:"evidence"`
	Confidence float64                    `json:"confidence"`
	Sources    []index.RetrievedUnit      `json:"sources"`
}

// Service wires the pipeline components around the session registry.
type Service struct {
	registry   *session.Registry
	embedder   retriever.Embedder
	pipeline   *ingest.Pipeline
	synth      *synthesizer.Synthesizer
	logger     *slog.Logger
	httpClient *http.Client

	defaultK        int
	defaultMinScore float64
}

// Config holds the service dependencies and retrieval defaults.
type Config struct {
	Registry    *session.Registry
	Embedder    retriever.Embedder
	Pipeline    *ingest.Pipeline
	Synthesizer *synthesizer.Synthesizer
	Logger      *slog.Logger

	// HTTPClient fetches remote documents for batch answering. Defaults to a
	// client with a 60s timeout.
	HTTPClient *http.Client

	DefaultK        int
	DefaultMinScore float64
}

// New creates the service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	k := cfg.DefaultK
	if k <= 0 {
		k = retriever.DefaultK
	}
	minScore := cfg.DefaultMinScore
	if minScore <= 0 {
		minScore = retriever.DefaultMinScore
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Service{
		registry:        cfg.Registry,
		embedder:        cfg.Embedder,
		pipeline:        cfg.Pipeline,
		synth:           cfg.Synthesizer,
		logger:          logger,
		httpClient:      httpClient,
		defaultK:        k,
		defaultMinScore: minScore,
	}
}

// StartSession mints a new session and returns its id.
func (s *Service) StartSession() string {
	sess := s.registry.Start()
	s.logger.Info("session started", "session", sess.ID)
	return sess.ID
}

// EndSession disposes of the session and its index.
func (s *Service) EndSession(id string) error {
	if err := s.registry.End(id); err != nil {
		return err
	}
	s.logger.Info("session ended", "session", id)
	return nil
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	return s.registry.Count()
}

// Documents lists the documents ingested into a session.
func (s *Service) Documents(sessionID string) ([]session.Document, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Documents(), nil
}

// Upload ingests the given files into the session, creating the session on
// first upload.
func (s *Service) Upload(ctx context.Context, sessionID string, uploads []ingest.Upload) (*ingest.Result, error) {
	sess, err := s.registry.Ensure(sessionID)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, sess, uploads)
}

// IndexDir ingests every supported file in a directory into the named
// session, creating it if needed. Used by the one-shot CLI mode.
func (s *Service) IndexDir(ctx context.Context, sessionID, dir string) (*ingest.Result, error) {
	sess, err := s.registry.Ensure(sessionID)
	if err != nil {
		return nil, err
	}
	return s.pipeline.IngestDir(ctx, sess, dir)
}

// Retrieve returns the ranked units relevant to the query without invoking
// answer synthesis. A nil minScore means the configured default; an explicit
// value is honored as given, zero and negative thresholds included.
func (s *Service) Retrieve(ctx context.Context, sessionID, query string, k int, minScore *float64) ([]index.RetrievedUnit, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	resolvedK, resolvedMin := s.applyDefaults(k, minScore)
	return retriever.New(s.embedder, sess.Searcher()).Retrieve(ctx, query, resolvedK, resolvedMin)
}

// Ask answers a question from the session's documents. When nothing relevant
// is retrieved the explicit no-answer response is returned; an answer is
// never fabricated without evidence.
func (s *Service) Ask(ctx context.Context, sessionID, question string, k int, minScore *float64) (*Answer, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	resolvedK, resolvedMin := s.applyDefaults(k, minScore)

	units, err := retriever.New(s.embedder, sess.Searcher()).Retrieve(ctx, question, resolvedK, resolvedMin)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	structured, err := s.synth.Synthesize(ctx, question, units)
	if errors.Is(err, synthesizer.ErrEmptyEvidence) {
		structured = synthesizer.NoEvidenceAnswer()
	} else if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	s.logger.Info("question answered",
		"session", sessionID,
		"sources", len(units),
		"evidence", len(structured.Evidence),
	)
	return &Answer{
		Query:      question,
		Answer:     structured.Answer,
		Rationale:  structured.Rationale,
		Evidence:   structured.Evidence,
		Confidence: structured.Confidence,
		Sources:    units,
	}, nil
}

func (s *Service) applyDefaults(k int, minScore *float64) (int, float64) {
	if k <= 0 {
		k = s.defaultK
	}
	resolved := s.defaultMinScore
	if minScore != nil {
		resolved = *minScore
	}
	return k, resolved
}
