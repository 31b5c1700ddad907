package trust

import (
	"context"
	"sync"
	"time"

	"github.com/peersync/peersync-go/pkg/persistence"
)

// FileStore keeps pins in a JSON state file. Every Put rewrites the file
// atomically; Get reads it so edits by other processes are seen.
type FileStore struct {
	mu    sync.Mutex
	state *persistence.TrustStateStore
}

// NewFileStore creates a file-backed trust store at path. The file is
// created on the first Put.
func NewFileStore(path string) *FileStore {
	return &FileStore{state: persistence.NewTrustStateStore(path)}
}

// Get returns the fingerprint pinned for peer.
func (s *FileStore) Get(_ context.Context, peer string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state.Load()
	if err != nil {
		return "", false, err
	}
	rec, ok := st.Peers[peer]
	return rec.Fingerprint, ok, nil
}

// Put pins fingerprint for peer.
func (s *FileStore) Put(_ context.Context, peer, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state.Load()
	if err != nil {
		return err
	}
	st.Peers[peer] = persistence.PeerRecord{
		Fingerprint: fingerprint,
		PinnedAt:    time.Now().UTC(),
	}
	return s.state.Save(st)
}
