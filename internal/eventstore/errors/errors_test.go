package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrongExpectedVersionErrorIsSentinel(t *testing.T) {
	err := NewWrongExpectedVersion("account-1", 3, 5)
	require.True(t, errors.Is(err, ErrWrongExpectedVersion))
	require.False(t, errors.Is(err, ErrStreamDeleted))
}

func TestDuplicateMessageIDErrorIsWrongExpectedVersionSubclass(t *testing.T) {
	err := NewDuplicateMessageID("account-1", "abc-123")
	require.True(t, errors.Is(err, ErrWrongExpectedVersion),
		"duplicate message id must be classified as a WrongExpectedVersion conflict")

	var dup *DuplicateMessageIDError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "account-1", dup.Stream)
}

func TestStreamDeletedErrorIsSentinel(t *testing.T) {
	err := NewStreamDeleted("account-1")
	require.True(t, errors.Is(err, ErrStreamDeleted))
	require.False(t, errors.Is(err, ErrWrongExpectedVersion))
}

func TestBackendFaultWrapsUnderlyingErr(t *testing.T) {
	cause := errors.New("disk full")
	err := NewBackendFault("append", cause)

	require.True(t, errors.Is(err, ErrBackendFault))
	require.ErrorIs(t, err, cause)
	require.True(t, IsBackendFault(err))
}

func TestNewBackendFaultNilIsNil(t *testing.T) {
	require.NoError(t, NewBackendFault("append", nil))
}

func TestIsWrongExpectedVersionHelper(t *testing.T) {
	require.True(t, IsWrongExpectedVersion(NewWrongExpectedVersion("s", 1, 2)))
	require.False(t, IsWrongExpectedVersion(errors.New("other")))
}
