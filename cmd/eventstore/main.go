// Package main provides a minimal command-line harness for the event
// store core: open a backend, append a demo batch, and read it back.
// There is no RPC/HTTP surface here (spec.md §1 scopes that out); this
// is a smoke-test entry point, not a server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/eventstore/eventstore/internal/eventstore"
	"github.com/eventstore/eventstore/internal/eventstore/pebble"
	"github.com/eventstore/eventstore/internal/eventstore/postgres"
	"github.com/eventstore/eventstore/internal/eventstore/sqlite"
	"github.com/eventstore/eventstore/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func openDriver(backend, dbURL, dataDir string) (eventstore.Driver, error) {
	switch backend {
	case "sqlite":
		path := dbURL
		if path == "" {
			path = "eventstore.db"
		}
		if dataDir != "" {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = dataDir + "/" + path
		}
		return sqlite.Open(sqlite.Config{Path: path})

	case "postgres":
		if dbURL == "" {
			return nil, fmt.Errorf("--db-url is required for the postgres backend")
		}
		return postgres.Open(postgres.Config{DSN: dbURL})

	case "pebble":
		dir := dataDir
		if dir == "" {
			dir = "./data/eventstore-pebble"
		}
		return pebble.Open(pebble.Config{Path: dir})

	default:
		return nil, fmt.Errorf("unknown backend %q (use sqlite, postgres, or pebble)", backend)
	}
}

func main() {
	backend := flag.String("backend", getEnv("EVENTSTORE_BACKEND", "sqlite"), "storage backend: sqlite, postgres, pebble")
	dbURL := flag.String("db-url", getEnv("EVENTSTORE_DB_URL", ""), "sqlite file path or postgres DSN")
	dataDir := flag.String("data-dir", getEnv("EVENTSTORE_DATA_DIR", ""), "data directory for sqlite/pebble")
	stream := flag.String("stream", "demo-stream", "stream name to append a demo batch to")
	logLevel := flag.String("log-level", getEnv("EVENTSTORE_LOG_LEVEL", "info"), "debug, info, warn, error")
	logFormat := flag.String("log-format", getEnv("EVENTSTORE_LOG_FORMAT", "console"), "console or json")
	flag.Parse()

	logger.Initialize(*logLevel, *logFormat)
	log := logger.Get()

	driver, err := openDriver(*backend, *dbURL, *dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backend")
	}

	ctx := context.Background()
	if err := driver.CreateSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create schema")
	}

	store := eventstore.Open(driver)
	defer store.Close()

	batch := []eventstore.NewMessage{
		{MessageID: uuid.NewString(), Type: "demo-started", Payload: `{"source":"cli"}`},
		{MessageID: uuid.NewString(), Type: "demo-continued", Payload: `{"step":2}`},
	}

	result, err := store.Append(ctx, *stream, eventstore.ExpectedAny, batch)
	if err != nil {
		log.Fatal().Err(err).Msg("append failed")
	}
	log.Info().
		Str("stream", *stream).
		Int64("version", result.CurrentVersion).
		Int64("position", result.CurrentPosition).
		Msg("appended demo batch")

	page, err := store.ReadStreamForwards(ctx, *stream, eventstore.StreamVersionStart, 100, true)
	if err != nil {
		log.Fatal().Err(err).Msg("read failed")
	}
	for _, m := range page.Messages {
		log.Info().
			Int64("version", m.StreamVersion).
			Int64("position", m.Position).
			Str("type", m.Type).
			Str("payload", m.Payload).
			Msg("message")
	}
}
