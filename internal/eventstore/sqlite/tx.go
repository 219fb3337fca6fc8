package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// WithTx runs fn inside a single SQLite transaction. SQLite's own
// writer serialization (this package pins db to one connection, see
// Open) makes the plain deferred BEGIN that BeginTx issues sufficient
// to make the StreamVersion-then-InsertMessages sequence race-free,
// per the Driver.WithTx contract.
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

func (t *txn) StreamVersion(ctx context.Context, canonical string) (int64, error) {
	var version sql.NullInt64
	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT MAX(stream_version) FROM messages WHERE canonical = ?`, canonical)
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
		`SELECT 1 FROM streams WHERE canonical = ? LIMIT 1`, canonical)
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
		 WHERE canonical = ? AND stream_version >= ?
		 ORDER BY stream_version ASC
		 LIMIT ?`, canonical, fromVersion, count)
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
		`SELECT 1 FROM messages WHERE canonical = ? AND message_id = ? LIMIT 1`, canonical, messageID)
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
		`SELECT position FROM messages WHERE canonical = ? AND stream_version = ?`, canonical, version)
	if err := row.Scan(&position); err != nil {
		return 0, err
	}
	return position, nil
}

func (t *txn) InsertMessages(ctx context.Context, id eventstore.StreamIdentity, startVersion int64, rows []eventstore.NewMessage, now time.Time) (int64, int64, error) {
	if _, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO streams (canonical, original, created_utc)
		 VALUES (?, ?, ?)
		 ON CONFLICT (canonical) DO NOTHING`,
		id.Canonical, id.Original, now.UnixNano()); err != nil {
		return 0, 0, err
	}

	var lastVersion, lastPosition int64
	for i, m := range rows {
		version := startVersion + int64(i)
		position, err := t.nextPosition(ctx)
		if err != nil {
			return 0, 0, err
		}
		if _, err := t.sqlTx.ExecContext(ctx,
			`INSERT INTO messages (canonical, stream_version, position, message_id, created_utc, type, payload, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id.Canonical, version, position, m.MessageID, now.UnixNano(), m.Type, m.Payload, m.Metadata); err != nil {
			return 0, 0, err
		}
		lastVersion, lastPosition = version, position
	}
	return lastVersion, lastPosition, nil
}

// nextPosition allocates the next value of the global sequence. The
// row is locked for the lifetime of the enclosing transaction, which
// is what makes position allocation monotonic and gap-free under the
// single-writer-connection model this driver relies on.
func (t *txn) nextPosition(ctx context.Context) (int64, error) {
	if _, err := t.sqlTx.ExecContext(ctx,
		`UPDATE global_sequence SET value = value + 1 WHERE id = 1`); err != nil {
		return 0, err
	}
	var value int64
	row := t.sqlTx.QueryRowContext(ctx, `SELECT value FROM global_sequence WHERE id = 1`)
	if err := row.Scan(&value); err != nil {
		return 0, err
	}
	return value - 1, nil
}

func (t *txn) DeleteStreamMessages(ctx context.Context, canonical string) (int64, error) {
	result, err := t.sqlTx.ExecContext(ctx, `DELETE FROM messages WHERE canonical = ?`, canonical)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (t *txn) DeleteMessageByID(ctx context.Context, canonical string, messageID string) (bool, error) {
	result, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM messages WHERE canonical = ? AND message_id = ?`, canonical, messageID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
