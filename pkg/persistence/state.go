package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// TrustState contains the pinned peer identities of a node.
type TrustState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Peers maps peer names to their pinned certificates.
	Peers map[string]PeerRecord `json:"peers,omitempty"`
}

// PeerRecord is the pinned certificate of one peer.
type PeerRecord struct {
	// Fingerprint is the upper-case hex encoding of the leaf certificate.
	Fingerprint string `json:"fingerprint"`

	// PinnedAt is when the fingerprint was first stored.
	PinnedAt time.Time `json:"pinned_at"`
}

// TrustStateStore manages persistence of trust state to a JSON file.
type TrustStateStore struct {
	mu   sync.Mutex
	path string
}

// NewTrustStateStore creates a new trust state store.
func NewTrustStateStore(path string) *TrustStateStore {
	return &TrustStateStore{path: path}
}

// Path returns the state file location.
func (s *TrustStateStore) Path() string {
	return s.path
}

// Save persists the state to disk. The file is replaced atomically so a
// crash never leaves a partially written state behind.
func (s *TrustStateStore) Save(state *TrustState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state from disk.
// Returns an empty state if the file doesn't exist.
func (s *TrustStateStore) Load() (*TrustState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &TrustState{Version: StateVersion, Peers: map[string]PeerRecord{}}, nil
	}
	if err != nil {
		return nil, err
	}

	state := &TrustState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", state.Version, StateVersion)
	}
	if state.Peers == nil {
		state.Peers = map[string]PeerRecord{}
	}

	return state, nil
}

// Clear removes the state file.
func (s *TrustStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
