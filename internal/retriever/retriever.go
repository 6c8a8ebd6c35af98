// Package retriever orchestrates query embedding and index search.
package retriever

import (
	"context"
	"fmt"

	"github.com/mike-a-ellis/docqa/internal/index"
)

// Default retrieval parameters for callers that do not configure their own.
const (
	DefaultK        = 5
	DefaultMinScore = 0.2
)

// Embedder converts a query into a vector using the same model and
// normalization as the indexed units.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a query and delegates to the session's vector index.
// Deterministic given a deterministic embedder and index; embedding failures
// propagate unchanged, retry policy belongs to the embedder adapter.
type Retriever struct {
	embedder Embedder
	index    index.Index
}

// New creates a retriever over the given embedder and index.
func New(embedder Embedder, idx index.Index) *Retriever {
	return &Retriever{embedder: embedder, index: idx}
}

// Retrieve returns up to k units relevant to the query, ordered by descending
// score, excluding any below minScore. The index ordering is returned
// unchanged. minScore is taken as given, zero and negative thresholds
// included: inner-product scores can be at or below zero and an
// unthresholded search is legitimate. Defaulting belongs to the caller.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, minScore float64) ([]index.RetrievedUnit, error) {
	if k <= 0 {
		k = DefaultK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	units, err := r.index.Search(ctx, vector, k, minScore)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return units, nil
}
