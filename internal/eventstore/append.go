package eventstore

import (
	"context"
	"fmt"
	"time"

	esErrors "github.com/eventstore/eventstore/internal/eventstore/errors"
	"github.com/eventstore/eventstore/internal/logger"
)

// Append submits a batch of messages to stream under expected as the
// caller's optimistic-concurrency belief about the stream's current
// head. The whole batch commits or none of it does; see spec.md §4.2.
func (s *EventStore) Append(ctx context.Context, stream string, expected ExpectedVersion, messages []NewMessage) (AppendResult, error) {
	if err := s.enter(); err != nil {
		return AppendResult{}, err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return AppendResult{}, err
	}

	if len(messages) == 0 {
		return AppendResult{}, fmt.Errorf("eventstore: append requires at least one message")
	}
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			return AppendResult{}, fmt.Errorf("eventstore: message %d invalid: %w", i, err)
		}
	}

	id, err := canonicalize(stream)
	if err != nil {
		return AppendResult{}, err
	}

	ctx = logger.WithStream(ctx, id.Canonical)
	now := s.clock.Now()

	var result AppendResult
	err = s.driver.WithTx(ctx, func(tx Tx) error {
		r, appendErr := appendWithinTx(ctx, tx, id, expected, messages, now)
		if appendErr != nil {
			return appendErr
		}
		result = r
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}

	logger.FromContext(ctx).Debug().
		Int("message_count", len(messages)).
		Int64("current_version", result.CurrentVersion).
		Int64("current_position", result.CurrentPosition).
		Msg("append committed")

	return result, nil
}

// appendWithinTx implements spec.md §4.2 end to end. It is the single
// code path shared by every driver, so "a reimplementation... MUST
// produce identical results" (spec.md §9) holds by construction: no
// driver package re-derives this algorithm.
func appendWithinTx(ctx context.Context, tx Tx, id StreamIdentity, expected ExpectedVersion, messages []NewMessage, now time.Time) (AppendResult, error) {
	current, err := tx.StreamVersion(ctx, id.Canonical)
	if err != nil {
		return AppendResult{}, esErrors.NewBackendFault("stream_version", err)
	}

	n := len(messages)

	var candidateStart int64
	switch expected {
	case ExpectedNoStream, ExpectedEmptyStream:
		candidateStart = 0
	case ExpectedAny:
		candidateStart = current + 1
	default:
		candidateStart = int64(expected) + 1
	}

	// ExpectedNoStream and ExpectedEmptyStream both require current ==
	// -1, but differ on whether the stream's metadata row may already
	// exist: NoStream means the stream has never been appended to;
	// EmptyStream means it has a row (e.g. left behind by a prior
	// DeleteStream) but currently carries no messages.
	var rowExists bool
	if current == -1 && (expected == ExpectedNoStream || expected == ExpectedEmptyStream) {
		rowExists, err = tx.StreamRowExists(ctx, id.Canonical)
		if err != nil {
			return AppendResult{}, esErrors.NewBackendFault("stream_row_exists", err)
		}
	}

	// Idempotent-replay detection: does the stream already carry this
	// exact batch, in order, at the range the batch would have landed
	// on had it already been applied?
	//
	// For a pinned expected version the range is fixed by the caller's
	// claim. For Any there is no pinned claim, so a retry arrives with
	// the head already past the batch; the replay range is instead the
	// tail of n messages ending at the current head.
	replayStart := candidateStart
	if expected == ExpectedAny {
		replayStart = current - int64(n) + 1
	}

	if replayStart >= 0 {
		existingIDs, err := tx.MessageIDsInRange(ctx, id.Canonical, replayStart, n)
		if err != nil {
			return AppendResult{}, esErrors.NewBackendFault("message_ids_in_range", err)
		}
		if batchMatches(existingIDs, messages) {
			lastVersion := replayStart + int64(n) - 1
			lastPosition, err := tx.PositionAtVersion(ctx, id.Canonical, lastVersion)
			if err != nil {
				return AppendResult{}, esErrors.NewBackendFault("position_at_version", err)
			}
			return AppendResult{CurrentVersion: lastVersion, CurrentPosition: lastPosition}, nil
		}
	}

	// Not a full match at the candidate range: is the version check
	// itself satisfied?
	switch expected {
	case ExpectedNoStream:
		if current != -1 || rowExists {
			return AppendResult{}, esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
		}
	case ExpectedEmptyStream:
		if current != -1 || !rowExists {
			return AppendResult{}, esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
		}
	case ExpectedAny:
		// no check; candidateStart already tracks the head
	default:
		if current != int64(expected) {
			return AppendResult{}, esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
		}
	}

	// Version check passed (or Any) but the batch wasn't a clean
	// replay: reject id collisions elsewhere in the stream before
	// inserting anything, never a silent partial insert.
	for _, m := range messages {
		exists, err := tx.MessageIDExists(ctx, id.Canonical, m.MessageID)
		if err != nil {
			return AppendResult{}, esErrors.NewBackendFault("message_id_exists", err)
		}
		if exists {
			return AppendResult{}, esErrors.NewDuplicateMessageID(id.Original, m.MessageID)
		}
	}

	lastVersion, lastPosition, err := tx.InsertMessages(ctx, id, candidateStart, messages, now)
	if err != nil {
		return AppendResult{}, esErrors.NewBackendFault("insert_messages", err)
	}

	return AppendResult{CurrentVersion: lastVersion, CurrentPosition: lastPosition}, nil
}

// batchMatches reports whether existingIDs is exactly the ordered
// sequence of message ids in messages.
func batchMatches(existingIDs []string, messages []NewMessage) bool {
	if len(existingIDs) != len(messages) {
		return false
	}
	for i, m := range messages {
		if existingIDs[i] != m.MessageID {
			return false
		}
	}
	return true
}
