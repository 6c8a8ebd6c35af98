package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/index"
)

// fakeEmbedder returns a fixed vector or a fixed error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func buildIndex(t *testing.T) *index.Flat {
	t.Helper()
	f := index.NewFlat(2)
	units := []chunker.TextUnit{
		{ID: "doc1:0", DocumentID: "doc1", Text: "first"},
		{ID: "doc1:1", DocumentID: "doc1", Text: "second"},
		{ID: "doc1:2", DocumentID: "doc1", Text: "third"},
	}
	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}
	if err := f.Build(context.Background(), units, vectors); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return f
}

// TestRetrieve_RanksAndCaps verifies retrieval returns at most k units in
// descending score order with the threshold applied.
func TestRetrieve_RanksAndCaps(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	r := New(emb, buildIndex(t))

	units, err := r.Retrieve(context.Background(), "query", 2, 0.1)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("Expected 2 units, got %d", len(units))
	}
	if units[0].Unit.ID != "doc1:0" || units[1].Unit.ID != "doc1:1" {
		t.Errorf("Unexpected order: %s, %s", units[0].Unit.ID, units[1].Unit.ID)
	}
	for _, u := range units {
		if u.Score < 0.1 {
			t.Errorf("Unit %s scored %f, below threshold", u.Unit.ID, u.Score)
		}
	}
	if emb.calls != 1 {
		t.Errorf("Expected 1 embed call, got %d", emb.calls)
	}
}

// TestRetrieve_DefaultK verifies zero k falls back to the default while the
// threshold is passed through as given.
func TestRetrieve_DefaultK(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	r := New(emb, buildIndex(t))

	// Scores against {1,0} are 1.0, 0.8, 0.0; threshold 0.2 excludes the
	// orthogonal unit even though the default k is 5.
	units, err := r.Retrieve(context.Background(), "query", 0, 0.2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("Expected 2 units, got %d", len(units))
	}
}

// TestRetrieve_ZeroThreshold verifies a zero minScore is honored, not coerced
// to a default: zero-scoring units stay in the result set.
func TestRetrieve_ZeroThreshold(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	r := New(emb, buildIndex(t))

	units, err := r.Retrieve(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("Expected all 3 units at threshold 0, got %d", len(units))
	}
	if units[2].Score != 0 {
		t.Errorf("Expected the orthogonal unit to score 0, got %f", units[2].Score)
	}
}

// TestRetrieve_NegativeThreshold verifies negative thresholds admit units
// with negative inner-product scores.
func TestRetrieve_NegativeThreshold(t *testing.T) {
	f := index.NewFlat(2)
	units := []chunker.TextUnit{
		{ID: "doc1:0", DocumentID: "doc1", Text: "aligned"},
		{ID: "doc1:1", DocumentID: "doc1", Text: "opposed"},
	}
	vectors := [][]float32{{1, 0}, {-1, 0}}
	if err := f.Build(context.Background(), units, vectors); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r := New(&fakeEmbedder{vector: []float32{1, 0}}, f)

	got, err := r.Retrieve(context.Background(), "query", 5, 0)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 unit at threshold 0, got %d", len(got))
	}

	got, err = r.Retrieve(context.Background(), "query", 5, -1)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 units at threshold -1, got %d", len(got))
	}
	if got[1].Score != -1 {
		t.Errorf("Expected the opposed unit to score -1, got %f", got[1].Score)
	}
}

// TestRetrieve_EmbedError verifies embedding failures propagate without a
// search being attempted.
func TestRetrieve_EmbedError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	emb := &fakeEmbedder{err: wantErr}
	r := New(emb, buildIndex(t))

	_, err := r.Retrieve(context.Background(), "query", 5, 0.2)
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected embed error to propagate, got %v", err)
	}
}

// TestRetrieve_EmptyIndex verifies an empty result set is not an error.
func TestRetrieve_EmptyIndex(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	r := New(emb, index.NewFlat(2))

	units, err := r.Retrieve(context.Background(), "query", 5, 0.2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("Expected no units, got %d", len(units))
	}
}
