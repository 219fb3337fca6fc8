// Package migrate runs the embedded schema-creation SQL for a storage
// driver. It is deliberately small: spec.md scopes "schema migrations
// beyond an initial create" as a Non-goal, so this runner only ever
// applies new files once, in filename order, and never rewrites an
// already-applied one.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

// Migrator applies embedded .sql files against a *sql.DB, tracking
// which have already run in a schema_migrations bookkeeping table.
type Migrator struct {
	db      *sql.DB
	dialect string // "postgres" or "sqlite"
	fs      embed.FS
}

// New builds a Migrator for the given dialect and embedded filesystem.
func New(db *sql.DB, dialect string, fs embed.FS) *Migrator {
	return &Migrator{db: db, dialect: dialect, fs: fs}
}

// AutoMigrate applies every pending migration in order. Safe to call
// on every startup: already-applied migrations are skipped.
func (m *Migrator) AutoMigrate(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("migrate: create migrations table: %w", err)
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrate: load migrations: %w", err)
	}
	if len(migrations) == 0 {
		return nil
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("migrate: list applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.name] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", mig.name, err)
		}
	}
	return nil
}

type migration struct {
	name    string
	content string
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

func (m *Migrator) loadMigrations() ([]migration, error) {
	entries, err := m.fs.ReadDir("schema")
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := m.fs.ReadFile("schema/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		out = append(out, migration{name: entry.Name(), content: string(content)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(mig.content) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec statement: %w", err)
		}
	}

	insertSQL := "INSERT INTO schema_migrations (version) VALUES (?)"
	if m.dialect == "postgres" {
		insertSQL = "INSERT INTO schema_migrations (version) VALUES ($1)"
	}
	if _, err := tx.ExecContext(ctx, insertSQL, mig.name); err != nil {
		return err
	}

	return tx.Commit()
}

// splitStatements splits a migration file on top-level semicolons.
// The embedded schema files never use semicolons inside string
// literals or procedural bodies, so a plain split is sufficient.
func splitStatements(content string) []string {
	return strings.Split(content, ";")
}
