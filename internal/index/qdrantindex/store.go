package qdrantindex

import (
	"context"
	"fmt"

	"github.com/mike-a-ellis/docqa/internal/index"
	"github.com/mike-a-ellis/docqa/internal/session"
)

// Store implements session.Store on Qdrant, one collection per session.
// Qdrant is durable server-side, so Persist is a no-op.
type Store struct {
	client    *Client
	dimension int
}

var _ session.Store = (*Store)(nil)

// NewStore creates a session store over the given Qdrant client.
func NewStore(client *Client, dimension int) *Store {
	return &Store{client: client, dimension: dimension}
}

func collectionName(sessionID string) string {
	return "docqa_session_" + sessionID
}

// Create returns the index handle for a new session's collection.
func (s *Store) Create(sessionID string) index.Index {
	return s.client.Index(collectionName(sessionID), s.dimension)
}

// Open returns the index handle for an existing session collection, or
// session.ErrNotPersisted when the collection does not exist.
func (s *Store) Open(sessionID string) (index.Index, error) {
	name := collectionName(sessionID)
	exists, err := s.client.client.CollectionExists(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", session.ErrNotPersisted, sessionID)
	}
	return s.client.Index(name, s.dimension), nil
}

// Persist is a no-op; every Build already lands in Qdrant.
func (s *Store) Persist(sessionID string, idx index.Index) error {
	return nil
}

// Remove drops the session's collection.
func (s *Store) Remove(sessionID string) error {
	return s.client.Index(collectionName(sessionID), s.dimension).Drop(context.Background())
}
