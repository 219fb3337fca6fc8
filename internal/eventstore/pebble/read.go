package pebble

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/eventstore/eventstore/internal/eventstore"
)

// StreamPage implements eventstore.Driver.StreamPage.
func (s *Store) StreamPage(ctx context.Context, canonical string, fromVersion int64, requestCount int, dir eventstore.Direction, prefetch bool) ([]eventstore.StoredMessage, int64, int64, bool, error) {
	prefix := streamIndexPrefix(canonical)
	head, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, 0, 0, false, err
	}
	if !head.Last() {
		head.Close()
		return nil, -1, -1, false, nil
	}
	lastVersion, err := versionFromStreamIndexKey(head.Key(), prefix)
	if err != nil {
		head.Close()
		return nil, 0, 0, false, err
	}
	lastPosition, err := decodeInt64(head.Value())
	head.Close()
	if err != nil {
		return nil, 0, 0, false, err
	}

	gps, err := s.streamIndexScan(canonical, fromVersion, requestCount, dir)
	if err != nil {
		return nil, 0, 0, false, err
	}

	rows, err := s.fetchMessages(gps, prefetch, true)
	if err != nil {
		return nil, 0, 0, false, err
	}
	return rows, lastVersion, lastPosition, true, nil
}

func (s *Store) streamIndexScan(canonical string, fromVersion int64, requestCount int, dir eventstore.Direction) ([]int64, error) {
	prefix := streamIndexPrefix(canonical)

	var opts pebble.IterOptions
	if dir == eventstore.Forward {
		opts = pebble.IterOptions{LowerBound: streamIndexKey(canonical, fromVersion), UpperBound: prefixUpperBound(prefix)}
	} else if fromVersion == eventstore.StreamVersionEnd {
		opts = pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)}
	} else {
		// Inclusive of fromVersion: the upper bound is the key
		// immediately after it.
		opts = pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(streamIndexKey(canonical, fromVersion))}
	}

	iter, err := s.db.NewIter(&opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var gps []int64
	valid := iter.First()
	if dir == eventstore.Backward {
		valid = iter.Last()
	}
	for valid && len(gps) < requestCount {
		gp, err := decodeInt64(iter.Value())
		if err != nil {
			return nil, err
		}
		gps = append(gps, gp)
		if dir == eventstore.Forward {
			valid = iter.Next()
		} else {
			valid = iter.Prev()
		}
	}
	return gps, iter.Error()
}

func (s *Store) fetchMessages(gps []int64, prefetch bool, withStreamVersion bool) ([]eventstore.StoredMessage, error) {
	out := make([]eventstore.StoredMessage, 0, len(gps))
	for _, gp := range gps {
		value, closer, err := s.db.Get(messageKey(gp))
		if err != nil {
			return nil, err
		}
		rec, err := decodeRecord(value)
		closer.Close()
		if err != nil {
			return nil, err
		}
		m := eventstore.StoredMessage{
			MessageID:     rec.MessageID,
			StreamVersion: rec.StreamVersion,
			Position:      rec.Position,
			CreatedUTC:    rec.createdAt(),
			Type:          rec.Type,
		}
		if prefetch {
			m.Payload = rec.Payload
			m.Metadata = rec.Metadata
		}
		out = append(out, m)
	}
	return out, nil
}

// AllPage implements eventstore.Driver.AllPage.
func (s *Store) AllPage(ctx context.Context, fromPositionExclusive int64, requestCount int, dir eventstore.Direction, prefetch bool) ([]eventstore.StoredMessage, error) {
	var opts pebble.IterOptions
	switch {
	case dir == eventstore.Forward:
		opts = pebble.IterOptions{
			LowerBound: messageKey(fromPositionExclusive + 1),
			UpperBound: prefixUpperBound([]byte(prefixMessage)),
		}
	case fromPositionExclusive == eventstore.PositionEnd:
		opts = pebble.IterOptions{
			LowerBound: []byte(prefixMessage),
			UpperBound: prefixUpperBound([]byte(prefixMessage)),
		}
	default:
		opts = pebble.IterOptions{
			LowerBound: []byte(prefixMessage),
			UpperBound: messageKey(fromPositionExclusive),
		}
	}

	iter, err := s.db.NewIter(&opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []eventstore.StoredMessage
	valid := iter.First()
	if dir == eventstore.Backward {
		valid = iter.Last()
	}
	for valid && len(out) < requestCount {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, err
		}
		m := eventstore.StoredMessage{
			MessageID:     rec.MessageID,
			StreamName:    rec.Original,
			StreamVersion: rec.StreamVersion,
			Position:      rec.Position,
			CreatedUTC:    rec.createdAt(),
			Type:          rec.Type,
		}
		if prefetch {
			m.Payload = rec.Payload
			m.Metadata = rec.Metadata
		}
		out = append(out, m)
		if dir == eventstore.Forward {
			valid = iter.Next()
		} else {
			valid = iter.Prev()
		}
	}
	return out, iter.Error()
}

// HeadPosition implements eventstore.Driver.HeadPosition.
func (s *Store) HeadPosition(ctx context.Context) (int64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixMessage),
		UpperBound: prefixUpperBound([]byte(prefixMessage)),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return -1, nil
	}
	rec, err := decodeRecord(iter.Value())
	if err != nil {
		return 0, err
	}
	return rec.Position, nil
}

// MessageData implements eventstore.Driver.MessageData.
func (s *Store) MessageData(ctx context.Context, canonical string, messageID string) (string, string, error) {
	value, closer, err := s.db.Get(messageIndexKey(canonical, messageID))
	if err != nil {
		return "", "", err
	}
	version, err := decodeInt64(value)
	closer.Close()
	if err != nil {
		return "", "", err
	}

	gpBytes, closer, err := s.db.Get(streamIndexKey(canonical, version))
	if err != nil {
		return "", "", err
	}
	gp, err := decodeInt64(gpBytes)
	closer.Close()
	if err != nil {
		return "", "", err
	}

	recBytes, closer, err := s.db.Get(messageKey(gp))
	if err != nil {
		return "", "", err
	}
	rec, err := decodeRecord(recBytes)
	closer.Close()
	if err != nil {
		return "", "", err
	}
	return rec.Payload, rec.Metadata, nil
}
