package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mike-a-ellis/docqa/internal/chunker"
)

// Flat is an exact nearest-neighbor index over inner-product similarity.
// Vectors are expected to be L2-normalized by the embedder, making inner
// product equivalent to cosine similarity; the metric is recorded at build
// time and verified on load.
//
// Flat follows a single-writer, multiple-reader discipline: Build takes the
// write lock, Search and Len take read locks, so a rebuild never interleaves
// with an in-flight search on the same index.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	metric    string
	units     []chunker.TextUnit
	vectors   [][]float32
}

// MetricInnerProduct is the similarity metric Flat supports. It is fixed at
// build time and persisted alongside the vectors.
const MetricInnerProduct = "inner_product"

// NewFlat creates an empty flat index for vectors of the given dimension.
func NewFlat(dimension int) *Flat {
	return &Flat{dimension: dimension, metric: MetricInnerProduct}
}

// Build constructs the index from scratch, replacing any previous contents.
func (f *Flat) Build(ctx context.Context, units []chunker.TextUnit, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(units) == 0 {
		return ErrEmptyInput
	}
	if len(units) != len(vectors) {
		return fmt.Errorf("%w: %d units but %d vectors", ErrDimensionMismatch, len(units), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != f.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), f.dimension)
		}
	}

	copiedUnits := make([]chunker.TextUnit, len(units))
	copy(copiedUnits, units)
	copiedVectors := make([][]float32, len(vectors))
	for i, vec := range vectors {
		copiedVectors[i] = make([]float32, len(vec))
		copy(copiedVectors[i], vec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = copiedUnits
	f.vectors = copiedVectors
	return nil
}

// Search scores every indexed vector against the query and returns up to k
// results ordered by descending score. Results below minScore are excluded.
func (f *Flat) Search(ctx context.Context, query []float32, k int, minScore float64) ([]RetrievedUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), f.dimension)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.vectors) == 0 {
		return []RetrievedUnit{}, nil
	}

	scored := make([]RetrievedUnit, 0, len(f.vectors))
	for i, vec := range f.vectors {
		score := dot(vec, query)
		if score < minScore {
			continue
		}
		scored = append(scored, RetrievedUnit{Unit: f.units[i], Score: score})
	}

	// Stable sort keeps ingestion order for equal scores, so repeated
	// searches on an unmodified index return identical orderings.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Len reports the number of indexed units.
func (f *Flat) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.units), nil
}

// Dimension returns the configured embedding dimension.
func (f *Flat) Dimension() int { return f.dimension }

// Contents returns the indexed units and their vectors in index order.
// Callers must treat both as immutable.
func (f *Flat) Contents() ([]chunker.TextUnit, [][]float32) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	units := make([]chunker.TextUnit, len(f.units))
	copy(units, f.units)
	vectors := make([][]float32, len(f.vectors))
	copy(vectors, f.vectors)
	return units, vectors
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
