// Package session provides the isolation boundary for one user's uploaded
// documents and derived vector index: a registry maps session ids to owned
// index instances with explicit create-on-first-upload and
// dispose-on-session-end lifecycle.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/index"
)

// Document is one ingested document owned by a session.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Text       string    `json:"-"`
	IngestedAt time.Time `json:"ingested_at"`
	UnitCount  int       `json:"unit_count"`
}

// Session owns one vector index and the documents ingested into it. It is
// never shared across users. Ingestion is a write and search a read; the
// embedded RWMutex enforces the single-writer, multiple-reader discipline so
// a rebuild never interleaves with an in-flight search.
type Session struct {
	ID        string
	CreatedAt time.Time

	store Store

	mu        sync.RWMutex
	documents []Document
	units     []chunker.TextUnit
	vectors   [][]float32
	index     index.Index
}

// AddDocuments appends documents with their units and vectors to the session
// and rebuilds the index from the accumulated unit set. The rebuild is staged
// into a fresh index and persisted before the session swaps to it, so a
// failed build or persist leaves the served index matching the accumulated
// unit set.
func (s *Session) AddDocuments(ctx context.Context, docs []Document, units []chunker.TextUnit, vectors [][]float32) error {
	if len(units) != len(vectors) {
		return fmt.Errorf("%w: %d units but %d vectors", index.ErrDimensionMismatch, len(units), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allUnits := append(append([]chunker.TextUnit{}, s.units...), units...)
	allVectors := append(append([][]float32{}, s.vectors...), vectors...)

	rebuilt := s.store.Create(s.ID)
	if err := rebuilt.Build(ctx, allUnits, allVectors); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	if err := s.store.Persist(s.ID, rebuilt); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	s.index = rebuilt
	s.documents = append(s.documents, docs...)
	s.units = allUnits
	s.vectors = allVectors
	return nil
}

// Search runs a read-only query against the session index. Safe to call
// concurrently; blocked only while a rebuild is in flight.
func (s *Session) Search(ctx context.Context, query []float32, k int, minScore float64) ([]index.RetrievedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Search(ctx, query, k, minScore)
}

// Index exposes the session's index for read-only use under the session
// guard. Callers must not build through it.
func (s *Session) Index() index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Documents returns a copy of the session's document list.
func (s *Session) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, len(s.documents))
	copy(docs, s.documents)
	return docs
}

// UnitCount reports the number of units currently indexed.
func (s *Session) UnitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// searcher adapts a Session to the index.Index interface for read paths,
// keeping every search under the session guard.
type searcher struct {
	session *Session
}

// Searcher returns a read-only index view of the session.
func (s *Session) Searcher() index.Index {
	return &searcher{session: s}
}

func (v *searcher) Build(ctx context.Context, units []chunker.TextUnit, vectors [][]float32) error {
	return fmt.Errorf("session index is rebuilt through AddDocuments, not Build")
}

func (v *searcher) Search(ctx context.Context, query []float32, k int, minScore float64) ([]index.RetrievedUnit, error) {
	return v.session.Search(ctx, query, k, minScore)
}

func (v *searcher) Len(ctx context.Context) (int, error) {
	v.session.mu.RLock()
	defer v.session.mu.RUnlock()
	return v.session.index.Len(ctx)
}
