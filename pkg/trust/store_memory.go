package trust

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Pins are lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	peers map[string]string
}

// NewMemoryStore creates a new in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{peers: make(map[string]string)}
}

// Get returns the fingerprint pinned for peer.
func (s *MemoryStore) Get(_ context.Context, peer string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fp, ok := s.peers[peer]
	return fp, ok, nil
}

// Put pins fingerprint for peer.
func (s *MemoryStore) Put(_ context.Context, peer, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peers[peer] = fingerprint
	return nil
}

// Len returns the number of pinned peers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
