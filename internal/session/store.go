package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mike-a-ellis/docqa/internal/index"
)

// ErrNotPersisted indicates no persisted index exists for a session id.
var ErrNotPersisted = errors.New("no persisted index for session")

// Store maps a session id to a vector index instance, hiding the storage
// backend. The registry only needs a handle per session, not knowledge of
// where or how the index is kept.
type Store interface {
	// Create returns a fresh, empty index for a new session.
	Create(sessionID string) index.Index
	// Open restores a previously persisted index, or ErrNotPersisted.
	Open(sessionID string) (index.Index, error)
	// Persist makes the given session's index durable.
	Persist(sessionID string, idx index.Index) error
	// Remove discards any persisted state for the session.
	Remove(sessionID string) error
}

// FileStore keeps one flat index per session under base/<session id>,
// mirroring the on-disk layout of the per-session vector store directory.
type FileStore struct {
	base      string
	dimension int
}

// NewFileStore creates a file store rooted at base for vectors of the given
// dimension.
func NewFileStore(base string, dimension int) *FileStore {
	return &FileStore{base: base, dimension: dimension}
}

func (fs *FileStore) location(sessionID string) string {
	return filepath.Join(fs.base, sessionID)
}

// Create returns an empty in-process flat index.
func (fs *FileStore) Create(sessionID string) index.Index {
	return index.NewFlat(fs.dimension)
}

// Open loads the session's index from disk.
func (fs *FileStore) Open(sessionID string) (index.Index, error) {
	location := fs.location(sessionID)
	if _, err := os.Stat(location); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotPersisted, sessionID)
	}
	flat, err := index.LoadFlat(location)
	if err != nil {
		return nil, err
	}
	return flat, nil
}

// Persist saves the session's index to its directory.
func (fs *FileStore) Persist(sessionID string, idx index.Index) error {
	flat, ok := idx.(*index.Flat)
	if !ok {
		return fmt.Errorf("file store requires a flat index, got %T", idx)
	}
	return flat.Save(fs.location(sessionID))
}

// Remove deletes the session's directory.
func (fs *FileStore) Remove(sessionID string) error {
	return os.RemoveAll(fs.location(sessionID))
}
