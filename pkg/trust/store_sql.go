package trust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"
)

// MemoryDatabase opens a private in-memory SQLite database.
const MemoryDatabase = ":memory:"

const createTables = `
create table if not exists x509_cert (
  peername text not null primary key,
  certdata text not null,
  pinned_time timestamp not null default current_timestamp
);
`

// SQLStore keeps pins in the x509_cert table of a SQLite database.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens or creates the database at path and ensures the
// schema exists.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	if path != MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trust database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trust tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns the fingerprint pinned for peer.
func (s *SQLStore) Get(ctx context.Context, peer string) (string, bool, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`select certdata from x509_cert where peername = ?`, peer).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query pin for %s: %w", peer, err)
	}
	return fp, true, nil
}

// Put pins fingerprint for peer.
func (s *SQLStore) Put(ctx context.Context, peer, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into x509_cert (peername, certdata) values (?, ?)
		 on conflict (peername) do update set certdata = excluded.certdata, pinned_time = current_timestamp`,
		peer, fingerprint)
	if err != nil {
		return fmt.Errorf("store pin for %s: %w", peer, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
