package trust

import (
	"context"
	"fmt"

	"github.com/peersync/peersync-go/pkg/config"
)

// Store keeps one pinned fingerprint per peer name.
// Implementations must be safe for concurrent access.
type Store interface {
	// Get returns the fingerprint pinned for peer. found is false when the
	// peer has never been pinned.
	Get(ctx context.Context, peer string) (fingerprint string, found bool, err error)

	// Put pins fingerprint for peer.
	Put(ctx context.Context, peer, fingerprint string) error
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg config.TrustStoreConfig) (Store, error) {
	switch cfg.Kind {
	case config.TrustStoreMemory:
		return NewMemoryStore(), nil
	case config.TrustStoreFile:
		return NewFileStore(cfg.Path), nil
	case config.TrustStoreSQLite:
		return OpenSQLStore(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown trust store kind %q", config.ErrInvalidConfig, cfg.Kind)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLStore)(nil)
)
