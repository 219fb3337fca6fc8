package eventstore

import (
	"context"

	esErrors "github.com/eventstore/eventstore/internal/eventstore/errors"
	"github.com/eventstore/eventstore/internal/logger"
)

// DeleteStream removes every message of stream (a soft delete: the
// metadata row may persist, see spec.md §3) and appends a
// $stream-deleted audit event to $deleted. Deleting a non-existent
// stream under ExpectedAny is a silent no-op; under any other expected
// version it still enforces the optimistic-concurrency check.
func (s *EventStore) DeleteStream(ctx context.Context, stream string, expected ExpectedVersion) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return err
	}

	id, err := canonicalize(stream)
	if err != nil {
		return err
	}
	if id.IsSystem() {
		return esErrors.ErrSystemStreamProtected
	}

	deletedID, err := canonicalize(deletedStreamName)
	if err != nil {
		return err
	}

	ctx = logger.WithStream(ctx, id.Canonical)
	now := s.clock.Now()

	err = s.driver.WithTx(ctx, func(tx Tx) error {
		current, err := tx.StreamVersion(ctx, id.Canonical)
		if err != nil {
			return esErrors.NewBackendFault("stream_version", err)
		}

		if current == -1 {
			// Nothing to delete. A pinned n>=0 expectation is a
			// genuine conflict; NoStream/EmptyStream/Any all already
			// describe "absent", so this is a no-op with no audit
			// event regardless of which of the three was asked for.
			if expected != ExpectedNoStream && expected != ExpectedEmptyStream && expected != ExpectedAny {
				return esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
			}
			return nil
		}

		switch expected {
		case ExpectedNoStream, ExpectedEmptyStream:
			return esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
		case ExpectedAny:
			// no check
		default:
			if current != int64(expected) {
				return esErrors.NewWrongExpectedVersion(id.Original, int64(expected), current)
			}
		}

		if _, err := tx.DeleteStreamMessages(ctx, id.Canonical); err != nil {
			return esErrors.NewBackendFault("delete_stream_messages", err)
		}

		auditVersion, err := tx.StreamVersion(ctx, deletedID.Canonical)
		if err != nil {
			return esErrors.NewBackendFault("stream_version", err)
		}
		audit := NewMessage{
			MessageID: newAuditMessageID(),
			Type:      "$stream-deleted",
			Payload:   streamDeletedPayload(id.Original),
		}
		if _, _, err := tx.InsertMessages(ctx, deletedID, auditVersion+1, []NewMessage{audit}, now); err != nil {
			return esErrors.NewBackendFault("insert_audit", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Debug().Msg("stream deleted")
	return nil
}

// DeleteMessage hard-deletes a single message row and, iff a row was
// actually removed, appends a $message-deleted audit event. Deleting a
// missing message is a no-op and never advances the head position.
func (s *EventStore) DeleteMessage(ctx context.Context, stream, messageID string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if err := checkContext(ctx); err != nil {
		return err
	}

	id, err := canonicalize(stream)
	if err != nil {
		return err
	}
	if id.IsSystem() {
		return esErrors.ErrSystemStreamProtected
	}

	deletedID, err := canonicalize(deletedStreamName)
	if err != nil {
		return err
	}

	ctx = logger.WithStream(ctx, id.Canonical)
	now := s.clock.Now()

	err = s.driver.WithTx(ctx, func(tx Tx) error {
		removed, err := tx.DeleteMessageByID(ctx, id.Canonical, messageID)
		if err != nil {
			return esErrors.NewBackendFault("delete_message_by_id", err)
		}
		if !removed {
			return nil
		}

		auditVersion, err := tx.StreamVersion(ctx, deletedID.Canonical)
		if err != nil {
			return esErrors.NewBackendFault("stream_version", err)
		}
		audit := NewMessage{
			MessageID: newAuditMessageID(),
			Type:      "$message-deleted",
			Payload:   messageDeletedPayload(id.Original, messageID),
		}
		if _, _, err := tx.InsertMessages(ctx, deletedID, auditVersion+1, []NewMessage{audit}, now); err != nil {
			return esErrors.NewBackendFault("insert_audit", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Debug().Msg("message delete evaluated")
	return nil
}
