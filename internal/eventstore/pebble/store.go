package pebble

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// Config configures a Store.
type Config struct {
	// Path is the on-disk directory for the Pebble database. Ignored
	// when InMemory is set.
	Path string
	// InMemory backs the store with an in-memory vfs, for tests.
	InMemory bool
	// TestMode shrinks cache/memtable sizes for faster test startup.
	TestMode bool
}

// Store implements eventstore.Driver directly against a single Pebble
// database — no SQL, no embedded migration runner. writeMu serializes
// WithTx callers the same way the teacher's namespaceHandle.writeMu
// serializes writers around its global-position counter.
type Store struct {
	db      *pebble.DB
	writeMu sync.Mutex
}

// Open opens (and creates, if absent) the Pebble database named by cfg.
func Open(cfg Config) (*Store, error) {
	opts := pebbleOptions(cfg)

	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("eventstore/pebble: open: %w", err)
	}
	return &Store{db: db}, nil
}

func pebbleOptions(cfg Config) *pebble.Options {
	if cfg.InMemory {
		return &pebble.Options{
			Cache:        pebble.NewCache(16 << 20),
			MemTableSize: 8 << 20,
			DisableWAL:   true,
			FS:           vfs.NewMem(),
		}
	}
	if cfg.TestMode {
		return &pebble.Options{
			Cache:        pebble.NewCache(32 << 20),
			MemTableSize: 16 << 20,
			DisableWAL:   true,
		}
	}
	return &pebble.Options{
		Cache:        pebble.NewCache(256 << 20),
		MemTableSize: 128 << 20,
	}
}

// CreateSchema is a no-op: a key-value engine has no DDL to run. The
// key layout in keys.go is fixed at compile time, so there is nothing
// to migrate.
func (s *Store) CreateSchema(ctx context.Context) error {
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ eventstore.Driver = (*Store)(nil)
