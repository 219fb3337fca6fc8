package sqlite

import (
	"context"
	"database/sql"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// StreamPage implements eventstore.Driver.StreamPage. found mirrors
// whether the canonical stream currently has any messages: a stream
// that never existed and one that was soft-deleted are
// indistinguishable at this layer, by design (spec.md §3).
func (s *Store) StreamPage(ctx context.Context, canonical string, fromVersion int64, requestCount int, dir eventstore.Direction, prefetch bool) ([]eventstore.StoredMessage, int64, int64, bool, error) {
	lastVersion, lastPosition, err := s.streamHead(ctx, canonical)
	if err != nil {
		return nil, 0, 0, false, err
	}
	if lastVersion == -1 {
		return nil, -1, -1, false, nil
	}

	query, args := streamPageQuery(canonical, fromVersion, requestCount, dir)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, false, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows, prefetch)
	if err != nil {
		return nil, 0, 0, false, err
	}
	return messages, lastVersion, lastPosition, true, nil
}

func streamPageQuery(canonical string, fromVersion int64, requestCount int, dir eventstore.Direction) (string, []any) {
	columns := "message_id, stream_version, position, created_utc, type, payload, metadata"
	if dir == eventstore.Forward {
		return `SELECT ` + columns + ` FROM messages
		        WHERE canonical = ? AND stream_version >= ?
		        ORDER BY stream_version ASC LIMIT ?`,
			[]any{canonical, fromVersion, requestCount}
	}
	if fromVersion == eventstore.StreamVersionEnd {
		return `SELECT ` + columns + ` FROM messages
		        WHERE canonical = ?
		        ORDER BY stream_version DESC LIMIT ?`,
			[]any{canonical, requestCount}
	}
	return `SELECT ` + columns + ` FROM messages
	        WHERE canonical = ? AND stream_version <= ?
	        ORDER BY stream_version DESC LIMIT ?`,
		[]any{canonical, fromVersion, requestCount}
}

func (s *Store) streamHead(ctx context.Context, canonical string) (int64, int64, error) {
	var version, position sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT stream_version, position FROM messages
		 WHERE canonical = ?
		 ORDER BY stream_version DESC LIMIT 1`, canonical)
	if err := row.Scan(&version, &position); err != nil {
		if err == sql.ErrNoRows {
			return -1, -1, nil
		}
		return 0, 0, err
	}
	return version.Int64, position.Int64, nil
}

// AllPage implements eventstore.Driver.AllPage.
func (s *Store) AllPage(ctx context.Context, fromPositionExclusive int64, requestCount int, dir eventstore.Direction, prefetch bool) ([]eventstore.StoredMessage, error) {
	query, args := allPageQuery(fromPositionExclusive, requestCount, dir)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAllMessages(rows, prefetch)
}

func allPageQuery(fromPositionExclusive int64, requestCount int, dir eventstore.Direction) (string, []any) {
	// Joined against streams so $all reads can stamp StreamName with
	// the row's original (pre-canonicalization) stream name, the same
	// as the pebble driver's AllPage does from its stored record.
	columns := "m.message_id, st.original, m.stream_version, m.position, m.created_utc, m.type, m.payload, m.metadata"
	from := `FROM messages m JOIN streams st ON st.canonical = m.canonical`
	if dir == eventstore.Forward {
		return `SELECT ` + columns + ` ` + from + `
		        WHERE m.position > ?
		        ORDER BY m.position ASC LIMIT ?`,
			[]any{fromPositionExclusive, requestCount}
	}
	if fromPositionExclusive == eventstore.PositionEnd {
		return `SELECT ` + columns + ` ` + from + `
		        ORDER BY m.position DESC LIMIT ?`,
			[]any{requestCount}
	}
	return `SELECT ` + columns + ` ` + from + `
	        WHERE m.position < ?
	        ORDER BY m.position DESC LIMIT ?`,
		[]any{fromPositionExclusive, requestCount}
}

// scanMessages reads the 7-column StreamPage shape (no name: the
// engine stamps StreamName from the caller's own argument).
func scanMessages(rows *sql.Rows, prefetch bool) ([]eventstore.StoredMessage, error) {
	var out []eventstore.StoredMessage
	for rows.Next() {
		var (
			m          eventstore.StoredMessage
			createdUTC int64
			payload    sql.NullString
			metadata   sql.NullString
		)
		if err := rows.Scan(&m.MessageID, &m.StreamVersion, &m.Position, &createdUTC, &m.Type, &payload, &metadata); err != nil {
			return nil, err
		}
		m.CreatedUTC = unixNanoToUTC(createdUTC)
		if prefetch {
			m.Payload = payload.String
			m.Metadata = metadata.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanAllMessages reads the 8-column AllPage shape, which carries the
// joined original stream name.
func scanAllMessages(rows *sql.Rows, prefetch bool) ([]eventstore.StoredMessage, error) {
	var out []eventstore.StoredMessage
	for rows.Next() {
		var (
			m          eventstore.StoredMessage
			createdUTC int64
			payload    sql.NullString
			metadata   sql.NullString
		)
		if err := rows.Scan(&m.MessageID, &m.StreamName, &m.StreamVersion, &m.Position, &createdUTC, &m.Type, &payload, &metadata); err != nil {
			return nil, err
		}
		m.CreatedUTC = unixNanoToUTC(createdUTC)
		if prefetch {
			m.Payload = payload.String
			m.Metadata = metadata.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HeadPosition implements eventstore.Driver.HeadPosition.
func (s *Store) HeadPosition(ctx context.Context) (int64, error) {
	var position sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT MAX(position) FROM messages`)
	if err := row.Scan(&position); err != nil {
		return 0, err
	}
	if !position.Valid {
		return -1, nil
	}
	return position.Int64, nil
}

// MessageData implements eventstore.Driver.MessageData.
func (s *Store) MessageData(ctx context.Context, canonical string, messageID string) (string, string, error) {
	var payload, metadata sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, metadata FROM messages WHERE canonical = ? AND message_id = ?`, canonical, messageID)
	if err := row.Scan(&payload, &metadata); err != nil {
		return "", "", err
	}
	return payload.String, metadata.String, nil
}
