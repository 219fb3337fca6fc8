package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventstore/eventstore/internal/eventstore"
	esErrors "github.com/eventstore/eventstore/internal/eventstore/errors"
	"github.com/eventstore/eventstore/internal/eventstore/sqlite"
)

func newTestStore(t *testing.T, opts ...eventstore.Option) (*eventstore.EventStore, func()) {
	t.Helper()
	driver, err := sqlite.Open(sqlite.Config{TestMode: true, Name: t.Name()})
	require.NoError(t, err)
	require.NoError(t, driver.CreateSchema(context.Background()))

	store := eventstore.Open(driver, opts...)
	return store, func() { _ = store.Close() }
}

func TestCloseIsIdempotent(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestOperationsAfterCloseReturnObjectDisposed(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Append(context.Background(), "account-1", eventstore.ExpectedNoStream, []eventstore.NewMessage{
		{MessageID: uuid.NewString(), Type: "opened"},
	})
	require.ErrorIs(t, err, esErrors.ErrObjectDisposed)

	_, err = store.ReadStreamForwards(context.Background(), "account-1", eventstore.StreamVersionStart, 10, false)
	require.ErrorIs(t, err, esErrors.ErrObjectDisposed)
}

func TestOperationCancelledOnPreCancelledContext(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, "account-1", eventstore.ExpectedNoStream, []eventstore.NewMessage{
		{MessageID: uuid.NewString(), Type: "opened"},
	})
	require.ErrorIs(t, err, esErrors.ErrOperationCancelled)
}

func TestFixedClockStampsCreatedUTC(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, cleanup := newTestStore(t, eventstore.WithClock(eventstore.FixedClock{At: at}))
	defer cleanup()

	msgID := uuid.NewString()
	_, err := store.Append(context.Background(), "account-1", eventstore.ExpectedNoStream, []eventstore.NewMessage{
		{MessageID: msgID, Type: "opened", Payload: `{"ok":true}`},
	})
	require.NoError(t, err)

	page, err := store.ReadStreamForwards(context.Background(), "account-1", eventstore.StreamVersionStart, 10, true)
	require.NoError(t, err)
	require.Equal(t, eventstore.StreamFound, page.Status)
	require.Len(t, page.Messages, 1)
	require.Equal(t, at, page.Messages[0].CreatedUTC)
	require.Equal(t, msgID, page.Messages[0].MessageID)
}
