package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/eventstore/eventstore/internal/eventstore"
	"github.com/eventstore/eventstore/internal/eventstore/drivertest"
	"github.com/eventstore/eventstore/internal/eventstore/postgres"
)

// TestDriverContract requires a reachable Postgres instance, same as
// the teacher's own postgres store tests: set POSTGRES_HOST et al. to
// point at one, or leave the defaults for a local dev database.
func TestDriverContract(t *testing.T) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("POSTGRES_USER", "postgres"),
		getEnv("POSTGRES_PASSWORD", "postgres"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "eventstore_test"),
	)

	store, err := postgres.Open(postgres.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer store.Close()
	if err := store.CreateSchema(context.Background()); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	drivertest.Run(t, func(t *testing.T) (eventstore.Driver, func()) {
		if err := store.ResetForTest(context.Background()); err != nil {
			t.Fatalf("reset schema: %v", err)
		}
		return store, func() {}
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
