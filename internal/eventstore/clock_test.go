package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedClockAlwaysReturnsSameInstant(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := FixedClock{At: at}

	require.Equal(t, at, clock.Now())
	require.Equal(t, at, clock.Now())
}

func TestSequenceClockAdvancesThenRepeatsLast(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := NewSequenceClock(t1, t2)

	require.Equal(t, t1, clock.Now())
	require.Equal(t, t2, clock.Now())
	require.Equal(t, t2, clock.Now(), "repeats last instant once exhausted")
}

func TestSequenceClockEmptyReturnsZeroValue(t *testing.T) {
	clock := NewSequenceClock()
	require.True(t, clock.Now().IsZero())
}
