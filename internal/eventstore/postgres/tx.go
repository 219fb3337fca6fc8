package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// WithTx runs fn inside a single Postgres transaction. Unlike the
// sqlite driver (one pinned connection serializes all writers for
// free), concurrent Postgres connections need an explicit per-stream
// lock to make the read-version/decide/insert sequence race-free.
// StreamVersion takes a transaction-scoped advisory lock on the
// canonical id the first time it is called, so every subsequent
// primitive in the same Tx (including InsertMessages) already runs
// serialized against any other transaction touching that stream; see
// lockCanonical.
func (s *Store) WithTx(ctx context.Context, fn func(eventstore.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	tx := &txn{sqlTx: sqlTx}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// txn implements eventstore.Tx against a single *sql.Tx.
type txn struct {
	sqlTx *sql.Tx
}

// lockCanonical takes a transaction-scoped advisory lock keyed on
// canonical, released automatically at commit/rollback. It does not
// require a streams row to exist, so it serializes two concurrent
// appends to the same brand-new stream just as well as two appends to
// an established one. Grounded on the same
// pg_advisory_xact_lock(hashtextextended(...)) pattern the retrieval
// pack's realtime-store Postgres driver uses to serialize per-key
// writers.
func (t *txn) lockCanonical(ctx context.Context, canonical string) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, canonical)
	return err
}

// upsertStreamRow records the stream's metadata row the first time it
// is written. Locking already happened in StreamVersion; ON CONFLICT
// DO NOTHING means only the row's first writer's original name sticks,
// which is fine since canonical ids are stable per original name.
func (t *txn) upsertStreamRow(ctx context.Context, canonical, original string, now time.Time) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO streams (canonical, original, created_utc)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (canonical) DO NOTHING`,
		canonical, original, now)
	return err
}

// StreamVersion also takes the per-stream advisory lock (see
// lockCanonical) before reading. Append and DeleteStream call it first,
// before any write primitive, which orders them against concurrent
// transactions on the same stream. DeleteMessage calls
// DeleteMessageByID first, which takes no advisory lock; its
// StreamVersion call locks $deleted before the audit insert.
func (t *txn) StreamVersion(ctx context.Context, canonical string) (int64, error) {
	if err := t.lockCanonical(ctx, canonical); err != nil {
		return 0, err
	}

	var version sql.NullInt64
	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT MAX(stream_version) FROM messages WHERE canonical = $1`, canonical)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return -1, nil
	}
	return version.Int64, nil
}

func (t *txn) StreamRowExists(ctx context.Context, canonical string) (bool, error) {
	var exists int
	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT 1 FROM streams WHERE canonical = $1 LIMIT 1`, canonical)
	err := row.Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) MessageIDsInRange(ctx context.Context, canonical string, fromVersion int64, count int) ([]string, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT message_id FROM messages
		 WHERE canonical = $1 AND stream_version >= $2
		 ORDER BY stream_version ASC
		 LIMIT $3`, canonical, fromVersion, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *txn) MessageIDExists(ctx context.Context, canonical string, messageID string) (bool, error) {
	var exists int
	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE canonical = $1 AND message_id = $2 LIMIT 1`, canonical, messageID)
	err := row.Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) PositionAtVersion(ctx context.Context, canonical string, version int64) (int64, error) {
	var position int64
	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT position FROM messages WHERE canonical = $1 AND stream_version = $2`, canonical, version)
	if err := row.Scan(&position); err != nil {
		return 0, err
	}
	return position, nil
}

func (t *txn) InsertMessages(ctx context.Context, id eventstore.StreamIdentity, startVersion int64, rows []eventstore.NewMessage, now time.Time) (int64, int64, error) {
	// Re-acquiring within the same transaction is a no-op (Postgres
	// advisory locks are reentrant per (tx, key)); this keeps
	// InsertMessages safe to call on its own, without relying on the
	// engine always calling StreamVersion first.
	if err := t.lockCanonical(ctx, id.Canonical); err != nil {
		return 0, 0, err
	}
	if err := t.upsertStreamRow(ctx, id.Canonical, id.Original, now); err != nil {
		return 0, 0, err
	}

	var lastVersion, lastPosition int64
	for i, m := range rows {
		version := startVersion + int64(i)
		var position int64
		err := t.sqlTx.QueryRowContext(ctx,
			`INSERT INTO messages (canonical, stream_version, message_id, created_utc, type, payload, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)
			 RETURNING position`,
			id.Canonical, version, m.MessageID, now, m.Type, nullableJSON(m.Payload), nullableJSON(m.Metadata)).Scan(&position)
		if err != nil {
			return 0, 0, err
		}
		lastVersion, lastPosition = version, position
	}
	return lastVersion, lastPosition, nil
}

func nullableJSON(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (t *txn) DeleteStreamMessages(ctx context.Context, canonical string) (int64, error) {
	result, err := t.sqlTx.ExecContext(ctx, `DELETE FROM messages WHERE canonical = $1`, canonical)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (t *txn) DeleteMessageByID(ctx context.Context, canonical string, messageID string) (bool, error) {
	result, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM messages WHERE canonical = $1 AND message_id = $2`, canonical, messageID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
