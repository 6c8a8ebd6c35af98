// Package index provides per-session vector indexes with nearest-neighbor
// search over text unit embeddings.
package index

import (
	"context"
	"errors"

	"github.com/mike-a-ellis/docqa/internal/chunker"
)

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the
	// index's configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyInput indicates a build attempt with zero units.
	ErrEmptyInput = errors.New("no units to index")
	// ErrCorruptIndex indicates a persisted index whose vector blob and unit
	// metadata disagree.
	ErrCorruptIndex = errors.New("corrupt index")
)

// RetrievedUnit is a text unit plus its relevance score for one query.
// Transient, recomputed per query.
type RetrievedUnit struct {
	Unit  chunker.TextUnit `json:"unit"`
	Score float64          `json:"score"`
}

// Index stores unit vectors with their metadata and supports nearest-neighbor
// search. Build replaces the index contents wholly; there is no incremental
// insert, re-ingestion rebuilds from the accumulated unit set.
type Index interface {
	// Build constructs the index from scratch. vectors must parallel units
	// one-to-one and every vector must match the index dimension.
	Build(ctx context.Context, units []chunker.TextUnit, vectors [][]float32) error

	// Search returns up to k units ordered by descending similarity,
	// excluding any whose score is below minScore. An empty index or a
	// query nothing matches yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int, minScore float64) ([]RetrievedUnit, error)

	// Len reports the number of indexed units.
	Len(ctx context.Context) (int, error)
}
