// Package ingest runs the upload-to-index pipeline: extract text, chunk it
// into units, embed the units, and rebuild the owning session's index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/extract"
	"github.com/mike-a-ellis/docqa/internal/session"
)

// ErrNoDocuments indicates that nothing ingestable was found in an upload
// batch.
var ErrNoDocuments = errors.New("no ingestable documents")

// Embedder generates vectors for a batch of unit texts, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upload is one file handed to the pipeline by the transport layer.
type Upload struct {
	Name   string
	Reader io.Reader
}

// Result contains statistics about one ingestion run.
type Result struct {
	TotalFiles      int           `json:"total_files"`
	SuccessfulFiles int           `json:"successful_files"`
	TotalUnits      int           `json:"total_units"`
	FailedFiles     []FailedFile  `json:"failed_files,omitempty"`
	Duration        time.Duration `json:"-"`
}

// FailedFile records an upload that could not be ingested.
type FailedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Pipeline orchestrates extraction, chunking, embedding and index rebuild.
// Strictly pipelined per request; no stage calls back upstream.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(ch *chunker.Chunker, embedder Embedder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:  ch,
		embedder: embedder,
		logger:   logger,
	}
}

// Ingest processes the uploads into the session: every readable file becomes
// a document whose units join the session's index in one full rebuild.
// Unreadable files are recorded and skipped; the batch fails only when no
// file yields any units.
func (p *Pipeline) Ingest(ctx context.Context, sess *session.Session, uploads []Upload) (*Result, error) {
	start := time.Now()
	result := &Result{TotalFiles: len(uploads)}

	var (
		docs     []session.Document
		allUnits []chunker.TextUnit
	)
	for _, upload := range uploads {
		doc, units, err := p.processUpload(upload)
		if err != nil {
			p.logger.Warn("failed to process upload", "name", upload.Name, "error", err)
			result.FailedFiles = append(result.FailedFiles, FailedFile{
				Name:   upload.Name,
				Reason: err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
		allUnits = append(allUnits, units...)
		result.SuccessfulFiles++
	}

	if len(allUnits) == 0 {
		return result, ErrNoDocuments
	}

	texts := make([]string, len(allUnits))
	for i, unit := range allUnits {
		texts[i] = unit.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embed units: %w", err)
	}

	if err := sess.AddDocuments(ctx, docs, allUnits, vectors); err != nil {
		return result, err
	}

	result.TotalUnits = len(allUnits)
	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"session", sess.ID,
		"successful", result.SuccessfulFiles,
		"failed", len(result.FailedFiles),
		"units", result.TotalUnits,
		"duration", result.Duration,
	)
	return result, nil
}

// processUpload extracts and chunks a single file.
func (p *Pipeline) processUpload(upload Upload) (session.Document, []chunker.TextUnit, error) {
	text, err := extract.Text(upload.Name, upload.Reader)
	if err != nil {
		return session.Document{}, nil, err
	}

	docID := uuid.New().String()
	units := p.chunker.Split(docID, text)
	if len(units) == 0 {
		return session.Document{}, nil, extract.ErrNoText
	}

	doc := session.Document{
		ID:         docID,
		Name:       upload.Name,
		Text:       text,
		IngestedAt: time.Now().UTC(),
		UnitCount:  len(units),
	}
	p.logger.Debug("chunked document", "name", upload.Name, "units", len(units))
	return doc, units, nil
}

// supportedExtensions mirrors what extract.Text handles.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
}

// IngestDir ingests every supported file in a directory, non-recursively.
// Used by the one-shot CLI mode.
func (p *Pipeline) IngestDir(ctx context.Context, sess *session.Session, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	var uploads []Upload
	var open []*os.File
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()

	for _, entry := range entries {
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			p.logger.Warn("failed to open file", "name", entry.Name(), "error", err)
			continue
		}
		open = append(open, f)
		uploads = append(uploads, Upload{Name: entry.Name(), Reader: f})
	}
	if len(uploads) == 0 {
		return nil, ErrNoDocuments
	}
	return p.Ingest(ctx, sess, uploads)
}
