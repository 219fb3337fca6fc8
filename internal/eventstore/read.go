package eventstore

import (
	"context"
	"errors"
)

// ReadStreamForwards pages stream forwards from fromVersion (use
// StreamVersionStart for the beginning).
func (s *EventStore) ReadStreamForwards(ctx context.Context, stream string, fromVersion int64, maxCount int, prefetch bool) (ReadStreamPage, error) {
	return s.readStream(ctx, stream, fromVersion, maxCount, Forward, prefetch)
}

// ReadStreamBackwards pages stream backwards from fromVersion (use
// StreamVersionEnd to start at the latest message).
func (s *EventStore) ReadStreamBackwards(ctx context.Context, stream string, fromVersion int64, maxCount int, prefetch bool) (ReadStreamPage, error) {
	return s.readStream(ctx, stream, fromVersion, maxCount, Backward, prefetch)
}

func (s *EventStore) readStream(ctx context.Context, stream string, fromVersion int64, maxCount int, dir Direction, prefetch bool) (ReadStreamPage, error) {
	if err := s.enter(); err != nil {
		return ReadStreamPage{}, err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return ReadStreamPage{}, err
	}
	if maxCount <= 0 {
		return ReadStreamPage{}, errInvalidMaxCount
	}

	id, err := canonicalize(stream)
	if err != nil {
		return ReadStreamPage{}, err
	}

	// The "one extra row" look-ahead: ask for one more than requested
	// so is_end/next_version fall out without a second round trip.
	rows, lastVersion, lastPosition, found, err := s.driver.StreamPage(ctx, id.Canonical, fromVersion, maxCount+1, dir, prefetch)
	if err != nil {
		return ReadStreamPage{}, logFault(ctx, "stream_page", err)
	}

	if !found {
		return ReadStreamPage{
			Stream:             stream,
			Status:             StreamNotFound,
			FromVersion:        fromVersion,
			NextVersion:        fromVersion,
			NextCursor:         Cursor{Stream: stream, FromVersion: fromVersion, MaxCount: maxCount, Direction: dir, Prefetch: prefetch},
			Direction:          dir,
			IsEnd:              true,
			LastStreamVersion:  -1,
			LastStreamPosition: -1,
			Messages:           nil,
		}, nil
	}

	isEnd := len(rows) <= maxCount
	if !isEnd {
		rows = rows[:maxCount]
	}
	for i := range rows {
		rows[i].StreamName = stream
	}

	nextVersion := nextStreamVersion(rows, fromVersion, dir, isEnd)

	return ReadStreamPage{
		Stream:             stream,
		Status:             StreamFound,
		FromVersion:        fromVersion,
		NextVersion:        nextVersion,
		NextCursor:         Cursor{Stream: stream, FromVersion: nextVersion, MaxCount: maxCount, Direction: dir, Prefetch: prefetch},
		Direction:          dir,
		IsEnd:              isEnd,
		LastStreamVersion:  lastVersion,
		LastStreamPosition: lastPosition,
		Messages:           rows,
	}, nil
}

// NextPage re-enters a stream read at cursor, the re-entrant
// replacement for the captured `read_next` closure of spec.md §4.3
// (see Cursor's doc comment). Property: for any page p,
// p.IsEnd == true iff len(NextPage(p.NextCursor).Messages) == 0.
func (s *EventStore) NextPage(ctx context.Context, cursor Cursor) (ReadStreamPage, error) {
	return s.readStream(ctx, cursor.Stream, cursor.FromVersion, cursor.MaxCount, cursor.Direction, cursor.Prefetch)
}

// nextStreamVersion implements the four cases of spec.md §4.3. The
// backward branch must not let `StreamVersion - 1` underflow into
// StreamVersionEnd's own sentinel value: that would make NextPage
// restart the read from the stream's head instead of returning an
// empty page once version 0 has been consumed.
func nextStreamVersion(rows []StoredMessage, fromVersion int64, dir Direction, isEnd bool) int64 {
	if dir == Forward {
		if len(rows) == 0 {
			return fromVersion + 1
		}
		return rows[len(rows)-1].StreamVersion + 1
	}
	// Backward
	if len(rows) == 0 {
		if fromVersion == streamVersionExhausted {
			return streamVersionExhausted
		}
		return StreamVersionEnd
	}
	if next := rows[len(rows)-1].StreamVersion - 1; next >= 0 {
		return next
	}
	return streamVersionExhausted
}

// ReadAllForwards pages the global log forwards, strictly after
// fromPositionExclusive (use PositionBeforeStart for the first page,
// not PositionStart: position 0 is a real row, not a "before" cursor).
func (s *EventStore) ReadAllForwards(ctx context.Context, fromPositionExclusive int64, maxCount int, prefetch bool) (ReadAllPage, error) {
	return s.readAll(ctx, fromPositionExclusive, maxCount, Forward, prefetch)
}

// ReadAllBackwards pages the global log backwards from
// fromPositionExclusive (use PositionEnd to start at the current head).
func (s *EventStore) ReadAllBackwards(ctx context.Context, fromPositionExclusive int64, maxCount int, prefetch bool) (ReadAllPage, error) {
	return s.readAll(ctx, fromPositionExclusive, maxCount, Backward, prefetch)
}

func (s *EventStore) readAll(ctx context.Context, fromPositionExclusive int64, maxCount int, dir Direction, prefetch bool) (ReadAllPage, error) {
	if err := s.enter(); err != nil {
		return ReadAllPage{}, err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return ReadAllPage{}, err
	}
	if maxCount <= 0 {
		return ReadAllPage{}, errInvalidMaxCount
	}

	rows, err := s.driver.AllPage(ctx, fromPositionExclusive, maxCount+1, dir, prefetch)
	if err != nil {
		return ReadAllPage{}, logFault(ctx, "all_page", err)
	}

	isEnd := len(rows) <= maxCount
	if !isEnd {
		rows = rows[:maxCount]
	}

	nextPosition := nextAllPosition(rows, fromPositionExclusive, dir, isEnd)

	return ReadAllPage{
		FromPositionExclusive: fromPositionExclusive,
		NextPosition:          nextPosition,
		NextCursor:            AllCursor{FromPositionExclusive: nextPosition, MaxCount: maxCount, Direction: dir, Prefetch: prefetch},
		Direction:             dir,
		IsEnd:                 isEnd,
		Messages:              rows,
	}, nil
}

// NextAllPage re-enters a global-log read at cursor, the all-log
// counterpart of NextPage.
func (s *EventStore) NextAllPage(ctx context.Context, cursor AllCursor) (ReadAllPage, error) {
	return s.readAll(ctx, cursor.FromPositionExclusive, cursor.MaxCount, cursor.Direction, cursor.Prefetch)
}

func nextAllPosition(rows []StoredMessage, from int64, dir Direction, isEnd bool) int64 {
	if len(rows) == 0 {
		// An empty page keeps its own bound. Backward, that bound must
		// not become PositionEnd, or the next page would restart from
		// the head instead of staying empty.
		return from
	}
	return rows[len(rows)-1].Position
}

// ReadHeadPosition returns the largest position currently committed,
// or -1 if the store is empty.
func (s *EventStore) ReadHeadPosition(ctx context.Context) (int64, error) {
	if err := s.enter(); err != nil {
		return 0, err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	pos, err := s.driver.HeadPosition(ctx)
	if err != nil {
		return 0, logFault(ctx, "head_position", err)
	}
	return pos, nil
}

// ReadMessageData performs the lazy payload/metadata fetch used by
// callers that read with prefetch=false.
func (s *EventStore) ReadMessageData(ctx context.Context, stream, messageID string) (payload, metadata string, err error) {
	if err := s.enter(); err != nil {
		return "", "", err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return "", "", err
	}

	id, err := canonicalize(stream)
	if err != nil {
		return "", "", err
	}

	payload, metadata, err = s.driver.MessageData(ctx, id.Canonical, messageID)
	if err != nil {
		return "", "", logFault(ctx, "message_data", err)
	}
	return payload, metadata, nil
}

var errInvalidMaxCount = errors.New("eventstore: max_count must be positive")
