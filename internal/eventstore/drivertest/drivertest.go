// Package drivertest is a behavior contract every eventstore.Driver
// implementation must satisfy identically. spec.md §9 requires that a
// reimplementation against a different backend produce identical
// results; this suite is how that claim is checked in one place
// instead of being re-asserted per backend. Grounded on the teacher's
// practice of exercising the same SDK-spec scenarios against
// test_integration regardless of which store backs the server under
// test.
package drivertest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventstore/eventstore/internal/eventstore"
	esErrors "github.com/eventstore/eventstore/internal/eventstore/errors"
)

// Factory builds a fresh, schema-provisioned Driver for one test. The
// returned cleanup releases any resources the driver holds.
type Factory func(t *testing.T) (eventstore.Driver, func())

// Run exercises Factory against every scenario in this suite. Call it
// once per backend from that backend's own _test.go file.
func Run(t *testing.T, newDriver Factory) {
	t.Run("AppendAndReadForwards", func(t *testing.T) { testAppendAndReadForwards(t, newDriver) })
	t.Run("WrongExpectedVersionOnConflict", func(t *testing.T) { testWrongExpectedVersionOnConflict(t, newDriver) })
	t.Run("IdempotentReplayNoStream", func(t *testing.T) { testIdempotentReplayNoStream(t, newDriver) })
	t.Run("IdempotentReplayAny", func(t *testing.T) { testIdempotentReplayAny(t, newDriver) })
	t.Run("ReadStreamNotFound", func(t *testing.T) { testReadStreamNotFound(t, newDriver) })
	t.Run("ReadBackwardsFromEnd", func(t *testing.T) { testReadBackwardsFromEnd(t, newDriver) })
	t.Run("ReadAllOrdering", func(t *testing.T) { testReadAllOrdering(t, newDriver) })
	t.Run("OneExtraRowLookAhead", func(t *testing.T) { testOneExtraRowLookAhead(t, newDriver) })
	t.Run("NextPageResumesAcrossBothCursors", func(t *testing.T) { testNextPageResumesAcrossBothCursors(t, newDriver) })
	t.Run("SoftDeleteAndResurrect", func(t *testing.T) { testSoftDeleteAndResurrect(t, newDriver) })
	t.Run("DeleteMessageAudit", func(t *testing.T) { testDeleteMessageAudit(t, newDriver) })
	t.Run("PrefetchLazyLoad", func(t *testing.T) { testPrefetchLazyLoad(t, newDriver) })
}

func newStore(t *testing.T, newDriver Factory) (*eventstore.EventStore, func()) {
	t.Helper()
	driver, cleanup := newDriver(t)
	require.NoError(t, driver.CreateSchema(context.Background()))
	return eventstore.Open(driver), cleanup
}

func msg(t *testing.T) eventstore.NewMessage {
	t.Helper()
	return eventstore.NewMessage{
		MessageID: uuid.NewString(),
		Type:      "TestEvent",
		Payload:   `{"seq":1}`,
		Metadata:  `{"trace":"abc"}`,
	}
}

func testAppendAndReadForwards(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	result, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t), msg(t)})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.CurrentVersion)

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamFound, page.Status)
	require.True(t, page.IsEnd)
	require.Len(t, page.Messages, 2)
	require.Equal(t, int64(0), page.Messages[0].StreamVersion)
	require.Equal(t, int64(1), page.Messages[1].StreamVersion)
	require.Equal(t, stream, page.Messages[0].StreamName)
}

func testWrongExpectedVersionOnConflict(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t)})
	require.NoError(t, err)

	_, err = store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t)})
	require.ErrorIs(t, err, esErrors.ErrWrongExpectedVersion)

	_, err = store.Append(ctx, stream, eventstore.ExpectedVersion(5), []eventstore.NewMessage{msg(t)})
	require.ErrorIs(t, err, esErrors.ErrWrongExpectedVersion)
}

func testIdempotentReplayNoStream(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()
	batch := []eventstore.NewMessage{msg(t), msg(t)}

	first, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, batch)
	require.NoError(t, err)

	// Same batch, same expected version: a client retry after a dropped
	// response, not a new write.
	second, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, batch)
	require.NoError(t, err)
	require.Equal(t, first, second)

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2, "replay must not duplicate rows")
}

func testIdempotentReplayAny(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()
	batch := []eventstore.NewMessage{msg(t), msg(t)}

	first, err := store.Append(ctx, stream, eventstore.ExpectedAny, batch)
	require.NoError(t, err)

	second, err := store.Append(ctx, stream, eventstore.ExpectedAny, batch)
	require.NoError(t, err)
	require.Equal(t, first, second, "ExpectedAny replay of the tail batch must be recognized, not treated as a duplicate id conflict")

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
}

func testReadStreamNotFound(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()

	page, err := store.ReadStreamForwards(ctx, "account-"+uuid.NewString(), eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamNotFound, page.Status)
	require.Empty(t, page.Messages)
}

func testReadBackwardsFromEnd(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t), msg(t), msg(t)})
	require.NoError(t, err)

	page, err := store.ReadStreamBackwards(ctx, stream, eventstore.StreamVersionEnd, 2, false)
	require.NoError(t, err)
	require.False(t, page.IsEnd)
	require.Len(t, page.Messages, 2)
	require.Equal(t, int64(2), page.Messages[0].StreamVersion)
	require.Equal(t, int64(1), page.Messages[1].StreamVersion)
	require.Equal(t, int64(0), page.NextVersion)
}

func testReadAllOrdering(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()

	streamA := "account-" + uuid.NewString()
	streamB := "account-" + uuid.NewString()
	_, err := store.Append(ctx, streamA, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t)})
	require.NoError(t, err)
	_, err = store.Append(ctx, streamB, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t)})
	require.NoError(t, err)
	_, err = store.Append(ctx, streamA, eventstore.ExpectedVersion(0), []eventstore.NewMessage{msg(t)})
	require.NoError(t, err)

	page, err := store.ReadAllForwards(ctx, eventstore.PositionBeforeStart, 10, false)
	require.NoError(t, err)
	require.True(t, page.IsEnd)
	require.Len(t, page.Messages, 3)
	for i := 1; i < len(page.Messages); i++ {
		require.Less(t, page.Messages[i-1].Position, page.Messages[i].Position)
	}

	// $all reads must resolve each row's original stream name, same as
	// a stream-scoped read, not just its canonical id.
	require.Equal(t, streamA, page.Messages[0].StreamName)
	require.Equal(t, streamB, page.Messages[1].StreamName)
	require.Equal(t, streamA, page.Messages[2].StreamName)
}

func testOneExtraRowLookAhead(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	batch := make([]eventstore.NewMessage, 5)
	for i := range batch {
		batch[i] = msg(t)
	}
	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, batch)
	require.NoError(t, err)

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 3, false)
	require.NoError(t, err)
	require.False(t, page.IsEnd)
	require.Len(t, page.Messages, 3)
	require.Equal(t, int64(3), page.NextVersion)
	require.Equal(t, eventstore.Cursor{Stream: stream, FromVersion: 3, MaxCount: 3, Direction: eventstore.Forward}, page.NextCursor)

	// NextPage(p.NextCursor) must agree with re-entering by hand.
	page2, err := store.NextPage(ctx, page.NextCursor)
	require.NoError(t, err)
	require.True(t, page2.IsEnd)
	require.Len(t, page2.Messages, 2)

	// Property: p.is_end == true iff NextPage(p.NextCursor) is empty.
	page3, err := store.NextPage(ctx, page2.NextCursor)
	require.NoError(t, err)
	require.Empty(t, page3.Messages)
}

func testNextPageResumesAcrossBothCursors(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	batch := make([]eventstore.NewMessage, 4)
	for i := range batch {
		batch[i] = msg(t)
	}
	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, batch)
	require.NoError(t, err)

	// Stream cursor: walk the whole stream two rows at a time using
	// only the cursor the previous page returned, never touching the
	// from_version parameter directly.
	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 2, false)
	require.NoError(t, err)
	require.False(t, page.IsEnd)
	seen := len(page.Messages)
	for !page.IsEnd {
		page, err = store.NextPage(ctx, page.NextCursor)
		require.NoError(t, err)
		seen += len(page.Messages)
	}
	require.Equal(t, 4, seen)

	// All-log cursor: same walk, keyed on position.
	allPage, err := store.ReadAllForwards(ctx, eventstore.PositionBeforeStart, 2, false)
	require.NoError(t, err)
	require.False(t, allPage.IsEnd)
	seenAll := len(allPage.Messages)
	for !allPage.IsEnd {
		allPage, err = store.NextAllPage(ctx, allPage.NextCursor)
		require.NoError(t, err)
		seenAll += len(allPage.Messages)
	}
	require.GreaterOrEqual(t, seenAll, 4, "at least the 4 appended messages are in the log")

	final, err := store.NextAllPage(ctx, allPage.NextCursor)
	require.NoError(t, err)
	require.Empty(t, final.Messages, "is_end true must mean the next cursor's page is empty")

	// Backward stream cursor, walked all the way down through version
	// 0: the version-0 boundary must not alias StreamVersionEnd, or
	// NextPage would restart the read from the head instead of
	// returning empty.
	back, err := store.ReadStreamBackwards(ctx, stream, eventstore.StreamVersionEnd, 3, false)
	require.NoError(t, err)
	require.False(t, back.IsEnd)
	seenBack := len(back.Messages)
	for !back.IsEnd {
		back, err = store.NextPage(ctx, back.NextCursor)
		require.NoError(t, err)
		seenBack += len(back.Messages)
	}
	require.Equal(t, 4, seenBack)

	finalBack, err := store.NextPage(ctx, back.NextCursor)
	require.NoError(t, err)
	require.Empty(t, finalBack.Messages, "backward drain past version 0 must stay empty, not restart from the head")
}

func testSoftDeleteAndResurrect(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{msg(t)})
	require.NoError(t, err)

	require.NoError(t, store.DeleteStream(ctx, stream, eventstore.ExpectedVersion(0)))

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamNotFound, page.Status)

	auditPage, err := store.ReadStreamForwards(ctx, "$deleted", eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamFound, auditPage.Status)
	require.Len(t, auditPage.Messages, 1)
	require.Equal(t, "$stream-deleted", auditPage.Messages[0].Type)

	result, err := store.Append(ctx, stream, eventstore.ExpectedAny, []eventstore.NewMessage{msg(t)})
	require.NoError(t, err, "ExpectedAny must resurrect a soft-deleted stream at version 0")
	require.Equal(t, int64(0), result.CurrentVersion)
}

func testDeleteMessageAudit(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	m := msg(t)
	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{m})
	require.NoError(t, err)

	require.NoError(t, store.DeleteMessage(ctx, stream, m.MessageID))

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamNotFound, page.Status, "deleting the only message empties the stream")

	auditPage, err := store.ReadStreamForwards(ctx, "$deleted", eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Len(t, auditPage.Messages, 1)
	require.Equal(t, "$message-deleted", auditPage.Messages[0].Type)

	// Deleting again is a no-op: no second audit event.
	require.NoError(t, store.DeleteMessage(ctx, stream, m.MessageID))
	auditPage, err = store.ReadStreamForwards(ctx, "$deleted", eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Len(t, auditPage.Messages, 1)
}

func testPrefetchLazyLoad(t *testing.T, newDriver Factory) {
	store, cleanup := newStore(t, newDriver)
	defer cleanup()
	ctx := context.Background()
	stream := "account-" + uuid.NewString()

	m := msg(t)
	_, err := store.Append(ctx, stream, eventstore.ExpectedNoStream, []eventstore.NewMessage{m})
	require.NoError(t, err)

	page, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, false)
	require.NoError(t, err)
	require.Empty(t, page.Messages[0].Payload, "prefetch=false must not populate payload")

	payload, metadata, err := store.ReadMessageData(ctx, stream, m.MessageID)
	require.NoError(t, err)
	require.Equal(t, m.Payload, payload)
	require.Equal(t, m.Metadata, metadata)

	prefetched, err := store.ReadStreamForwards(ctx, stream, eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Equal(t, m.Payload, prefetched.Messages[0].Payload)

	require.WithinDuration(t, time.Now(), page.Messages[0].CreatedUTC, time.Minute)
}
