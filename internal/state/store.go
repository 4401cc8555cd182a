// Package state manages the SQLite database that caches appointments,
// professionals, and users on this device.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] (usually through one of its typed tables) and call its methods.
// Every committed write notifies the observers of the affected table, so
// [Table.Observe] streams stay current without polling.
package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the SQLite-backed local cache. Create one per process with [Open]
// and share it; it is safe for concurrent use.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// DefaultDBPath returns the default path for the cache database:
// ~/.local/share/agendasync/cache.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "agendasync", "cache.db"), nil
}

// Open opens (or creates) the SQLite database at path, runs pending
// migrations, and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	return &Store{db: db, subs: make(map[string]map[chan struct{}]struct{})}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded goose migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// --- change notifications ----------------------------------------------------

// subscribe registers interest in writes to table. The returned channel has a
// buffer of one, so bursts of writes collapse into a single wake-up.
func (s *Store) subscribe(table string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.subs[table] == nil {
		s.subs[table] = make(map[chan struct{}]struct{})
	}
	s.subs[table][ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs[table], ch)
		s.mu.Unlock()
	}
}

// notify wakes every observer of table. Called only after a write committed.
func (s *Store) notify(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// observers returns the number of live subscriptions on table.
func (s *Store) observers(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[table])
}
