// Package qdrantindex implements the session vector index on a remote Qdrant
// server, one collection per session. It is selected over the in-process flat
// index by configuration for deployments that already run Qdrant.
package qdrantindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/index"
)

// ErrUnreachable indicates the Qdrant server could not be reached.
var ErrUnreachable = errors.New("qdrant server unreachable")

const upsertBatchSize = 100

// Client wraps a Qdrant connection shared by all session indexes.
type Client struct {
	client *qdrant.Client
}

// NewClient connects to Qdrant and verifies health with exponential backoff,
// failing fast if the server stays unreachable.
func NewClient(host string, port int) (*Client, error) {
	qc, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	c := &Client{client: qc}
	if err := c.healthCheckWithRetry(context.Background()); err != nil {
		qc.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return c, nil
}

func (c *Client) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return c.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (c *Client) Health(ctx context.Context) error {
	result, err := c.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Index returns the session-scoped index stored in the given collection.
func (c *Client) Index(collection string, dimension int) *Index {
	return &Index{client: c.client, collection: collection, dimension: dimension}
}

// Index is one session's vector index backed by a Qdrant collection.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

var _ index.Index = (*Index)(nil)

// Build recreates the session collection from scratch and upserts every unit
// with its vector. Matches the flat index contract: rebuild, never append.
func (x *Index) Build(ctx context.Context, units []chunker.TextUnit, vectors [][]float32) error {
	if len(units) == 0 {
		return index.ErrEmptyInput
	}
	if len(units) != len(vectors) {
		return fmt.Errorf("%w: %d units but %d vectors", index.ErrDimensionMismatch, len(units), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != x.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				index.ErrDimensionMismatch, i, len(vec), x.dimension)
		}
	}

	if err := x.recreateCollection(ctx); err != nil {
		return err
	}

	for start := 0; start < len(units); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(units))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			unit := units[i]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"unit_id":     unit.ID,
					"document_id": unit.DocumentID,
					"index":       int64(unit.Index),
					"start":       int64(unit.Start),
					"end":         int64(unit.End),
					"text":        unit.Text,
				}),
			})
		}
		if err := x.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (x *Index) recreateCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err := x.client.DeleteCollection(ctx, x.collection); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.dimension),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (x *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: x.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Search runs a score-thresholded similarity query against the session
// collection, ordered by descending score.
func (x *Index) Search(ctx context.Context, query []float32, k int, minScore float64) ([]index.RetrievedUnit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			index.ErrDimensionMismatch, len(query), x.dimension)
	}
	if k <= 0 {
		return []index.RetrievedUnit{}, nil
	}

	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return []index.RetrievedUnit{}, nil
	}

	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}

	retrieved := make([]index.RetrievedUnit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		retrieved = append(retrieved, index.RetrievedUnit{
			Unit: chunker.TextUnit{
				ID:         payload["unit_id"].GetStringValue(),
				DocumentID: payload["document_id"].GetStringValue(),
				Index:      int(payload["index"].GetIntegerValue()),
				Start:      int(payload["start"].GetIntegerValue()),
				End:        int(payload["end"].GetIntegerValue()),
				Text:       payload["text"].GetStringValue(),
			},
			Score: float64(result.Score),
		})
	}
	return retrieved, nil
}

// Len reports the number of points in the session collection.
func (x *Index) Len(ctx context.Context) (int, error) {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return 0, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}
	info, err := x.client.GetCollectionInfo(ctx, x.collection)
	if err != nil {
		return 0, fmt.Errorf("get collection: %w", err)
	}
	return int(info.GetPointsCount()), nil
}

// Drop removes the session collection entirely. Used on session disposal.
func (x *Index) Drop(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := x.client.DeleteCollection(ctx, x.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
