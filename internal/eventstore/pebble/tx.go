package pebble

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// WithTx serializes all writers behind writeMu and stages every write
// in a single Pebble batch, committed with Sync once fn returns nil.
// Pebble has no multi-statement transaction of its own; a held mutex
// plus one atomic batch gives the same "one all-or-nothing unit, no
// interleaved StreamVersion reads from another writer" guarantee the
// SQL drivers get from a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(eventstore.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	batch := s.db.NewIndexedBatch()
	tx := &txn{db: s.db, batch: batch}
	if err := fn(tx); err != nil {
		_ = batch.Close()
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = batch.Close()
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	return batch.Close()
}

// txn implements eventstore.Tx. Reads go through the indexed batch so
// that a read observes the writes staged earlier in the same
// transaction (e.g. the audit append in delete.go reading $deleted's
// current version after the primary stream's messages were removed).
type txn struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (t *txn) StreamVersion(ctx context.Context, canonical string) (int64, error) {
	prefix := streamIndexPrefix(canonical)
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return -1, nil
	}
	return versionFromStreamIndexKey(iter.Key(), prefix)
}

func versionFromStreamIndexKey(key, prefix []byte) (int64, error) {
	return decodeInt64(key[len(prefix):])
}

func (t *txn) StreamRowExists(ctx context.Context, canonical string) (bool, error) {
	_, closer, err := t.batch.Get(streamMetaKey(canonical))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (t *txn) MessageIDsInRange(ctx context.Context, canonical string, fromVersion int64, count int) ([]string, error) {
	prefix := streamIndexPrefix(canonical)
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: streamIndexKey(canonical, fromVersion),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid() && len(ids) < count; iter.Next() {
		gp, err := decodeInt64(iter.Value())
		if err != nil {
			return nil, err
		}
		rec, err := t.getRecord(gp)
		if err != nil {
			return nil, err
		}
		ids = append(ids, rec.MessageID)
	}
	return ids, iter.Error()
}

func (t *txn) MessageIDExists(ctx context.Context, canonical string, messageID string) (bool, error) {
	_, closer, err := t.batch.Get(messageIndexKey(canonical, messageID))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (t *txn) PositionAtVersion(ctx context.Context, canonical string, version int64) (int64, error) {
	value, closer, err := t.batch.Get(streamIndexKey(canonical, version))
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	return decodeInt64(value)
}

func (t *txn) getRecord(gp int64) (record, error) {
	value, closer, err := t.batch.Get(messageKey(gp))
	if err != nil {
		return record{}, err
	}
	defer closer.Close()
	return decodeRecord(value)
}

func (t *txn) nextGlobalPosition() (int64, error) {
	value, closer, err := t.batch.Get([]byte(keyGlobalCounter))
	if err != nil && err != pebble.ErrNotFound {
		return 0, err
	}
	next := int64(0)
	if err == nil {
		next, err = decodeInt64(value)
		closer.Close()
		if err != nil {
			return 0, err
		}
	}
	if err := t.batch.Set([]byte(keyGlobalCounter), []byte(encodeInt64(next+1)), nil); err != nil {
		return 0, err
	}
	return next, nil
}

func (t *txn) InsertMessages(ctx context.Context, id eventstore.StreamIdentity, startVersion int64, rows []eventstore.NewMessage, now time.Time) (int64, int64, error) {
	if err := t.batch.Set(streamMetaKey(id.Canonical), []byte(id.Original), nil); err != nil {
		return 0, 0, err
	}

	var lastVersion, lastPosition int64
	for i, m := range rows {
		version := startVersion + int64(i)
		gp, err := t.nextGlobalPosition()
		if err != nil {
			return 0, 0, err
		}

		rec := record{
			Canonical:     id.Canonical,
			Original:      id.Original,
			StreamVersion: version,
			Position:      gp,
			MessageID:     m.MessageID,
			CreatedUTC:    now.UnixNano(),
			Type:          m.Type,
			Payload:       m.Payload,
			Metadata:      m.Metadata,
		}
		encoded, err := encodeRecord(rec)
		if err != nil {
			return 0, 0, err
		}

		if err := t.batch.Set(messageKey(gp), encoded, nil); err != nil {
			return 0, 0, err
		}
		if err := t.batch.Set(streamIndexKey(id.Canonical, version), []byte(encodeInt64(gp)), nil); err != nil {
			return 0, 0, err
		}
		if err := t.batch.Set(messageIndexKey(id.Canonical, m.MessageID), []byte(encodeInt64(version)), nil); err != nil {
			return 0, 0, err
		}
		lastVersion, lastPosition = version, gp
	}
	return lastVersion, lastPosition, nil
}

func (t *txn) DeleteStreamMessages(ctx context.Context, canonical string) (int64, error) {
	prefix := streamIndexPrefix(canonical)
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}

	type hit struct {
		gp  int64
		key []byte
	}
	var hits []hit
	for iter.First(); iter.Valid(); iter.Next() {
		gp, err := decodeInt64(iter.Value())
		if err != nil {
			iter.Close()
			return 0, err
		}
		key := append([]byte(nil), iter.Key()...)
		hits = append(hits, hit{gp: gp, key: key})
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return 0, err
	}
	iter.Close()

	var deleted int64
	for _, h := range hits {
		rec, err := t.getRecord(h.gp)
		if err != nil {
			return deleted, err
		}
		if err := t.batch.Delete(h.key, nil); err != nil {
			return deleted, err
		}
		if err := t.batch.Delete(messageKey(h.gp), nil); err != nil {
			return deleted, err
		}
		if err := t.batch.Delete(messageIndexKey(canonical, rec.MessageID), nil); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (t *txn) DeleteMessageByID(ctx context.Context, canonical string, messageID string) (bool, error) {
	midKey := messageIndexKey(canonical, messageID)
	value, closer, err := t.batch.Get(midKey)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	version, err := decodeInt64(value)
	closer.Close()
	if err != nil {
		return false, err
	}

	siKey := streamIndexKey(canonical, version)
	gpBytes, closer, err := t.batch.Get(siKey)
	if err != nil {
		return false, err
	}
	gp, err := decodeInt64(gpBytes)
	closer.Close()
	if err != nil {
		return false, err
	}

	if err := t.batch.Delete(midKey, nil); err != nil {
		return false, err
	}
	if err := t.batch.Delete(siKey, nil); err != nil {
		return false, err
	}
	if err := t.batch.Delete(messageKey(gp), nil); err != nil {
		return false, err
	}
	return true, nil
}
