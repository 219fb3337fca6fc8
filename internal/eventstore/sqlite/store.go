// Package sqlite is the reference storage driver for
// internal/eventstore, backed by modernc.org/sqlite (pure Go, no
// cgo). It is grounded on the teacher's internal/store/sqlite package:
// same single-connection-per-database approach (SQLite serializes
// writers better than it arbitrates them), same WAL/busy-timeout
// pragmas — generalized from a namespaced message store to the
// single-store contract of internal/eventstore.Driver. Open runs no
// migrations; the schema is created by CreateSchema.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eventstore/eventstore/internal/eventstore"
	"github.com/eventstore/eventstore/internal/migrate"
	_ "modernc.org/sqlite"
)

// Config configures a Store.
type Config struct {
	// Path is the sqlite file path. Ignored when TestMode is set.
	Path string
	// TestMode opens an ephemeral shared-cache in-memory database
	// instead of Path. Name distinguishes it from other in-memory
	// databases open in the same process — two Opens with the same
	// Name see the same data, two different Names do not.
	TestMode bool
	Name     string
}

// Store implements eventstore.Driver over a single SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and lazily creates) the SQLite database named by cfg.
func Open(cfg Config) (*Store, error) {
	dsn := cfg.Path
	if cfg.TestMode {
		name := cfg.Name
		if name == "" {
			name = "default"
		}
		dsn = "file:" + name + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	} else {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventstore/sqlite: open: %w", err)
	}
	// SQLite serializes writers regardless; pinning one connection
	// avoids SQLITE_BUSY storms under the teacher's own pragmas.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// CreateSchema provisions the streams/messages tables.
func (s *Store) CreateSchema(ctx context.Context) error {
	m := migrate.New(s.db, "sqlite", schemaFS)
	return m.AutoMigrate(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ eventstore.Driver = (*Store)(nil)
