// Package memory provides an in-memory StateStore, mainly for tests and
// single-process hosts.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/propapanda/dinky/pkg/domain"
)

// Store implements ports.StateStore in memory. Safe for concurrent use.
// Snapshots are isolated by a JSON round-trip, the same representation the
// durable stores use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Save persists the snapshot.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = data
	return nil
}

// Load retrieves the snapshot.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	s.mu.RLock()
	data, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns known session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
