// Package session persists per-conversation flow state keyed by a session
// id. The in-memory store is the default; the Redis store lets several API
// replicas share sessions.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/amedis-online/booking-agent/internal/flow"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session: not found")

// Store loads and saves conversation state.
type Store interface {
	Load(ctx context.Context, sessionID string) (*flow.State, error)
	Save(ctx context.Context, sessionID string, state *flow.State) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]flow.State
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]flow.State)}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*flow.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := state
	return &copied, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, state *flow.State) error {
	if state == nil {
		return errors.New("session: nil state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = *state
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
