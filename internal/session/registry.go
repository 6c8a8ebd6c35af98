package session

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docqa/internal/index"
)

// ErrSessionNotFound indicates an unknown session id with no persisted index
// to restore.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidSessionID indicates a caller-supplied session id that is not safe
// to use as a storage key.
var ErrInvalidSessionID = errors.New("invalid session id")

// Session ids become filesystem path components and collection names, so
// anything with separators or dot traversal is rejected before it reaches a
// store.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Registry maps session ids to owned sessions. No shared mutable state
// crosses session boundaries; the registry lock only guards the map itself.
type Registry struct {
	store Store

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry backed by the given session store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Start creates a new session with a fresh id and an empty index.
func (r *Registry) Start() *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		store:     r.store,
	}
	s.index = r.store.Create(s.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

// Ensure returns the session for the given id, creating it if it does not
// exist yet. This is the create-on-first-upload path: a client may mint a
// session id first and materialize the session with its initial upload.
func (r *Registry) Ensure(id string) (*Session, error) {
	s, err := r.Get(id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	s = &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		store:     r.store,
	}
	s.index = r.store.Create(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}
	r.sessions[id] = s
	return s, nil
}

// Get returns the session for the given id. A session unknown in memory but
// with a persisted index (previous process run) is restored from the store.
func (r *Registry) Get(id string) (*Session, error) {
	if !validSessionID(id) {
		return nil, ErrInvalidSessionID
	}

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	idx, err := r.store.Open(id)
	if err != nil {
		if errors.Is(err, ErrNotPersisted) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		store:     r.store,
		index:     idx,
	}
	// A restored flat index carries its unit set, which re-ingestion needs
	// for the next full rebuild.
	if flat, ok := idx.(*index.Flat); ok {
		s.units, s.vectors = flat.Contents()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}
	r.sessions[id] = s
	return s, nil
}

// End disposes of a session: it is dropped from the registry and its
// persisted index discarded.
func (r *Registry) End(id string) error {
	if !validSessionID(id) {
		return ErrInvalidSessionID
	}

	r.mu.Lock()
	_, known := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !known {
		// The session may still exist only as a persisted index from a
		// previous process run.
		if _, err := r.store.Open(id); err != nil {
			return ErrSessionNotFound
		}
	}
	return r.store.Remove(id)
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
