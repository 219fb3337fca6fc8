package eventstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeNonSystemStreamIsHashed(t *testing.T) {
	id, err := canonicalize("account-123")
	require.NoError(t, err)
	require.Equal(t, "account-123", id.Original)
	require.Len(t, id.Canonical, canonicalIDWidth)
	require.False(t, id.IsSystem())

	other, err := canonicalize("account-124")
	require.NoError(t, err)
	require.NotEqual(t, id.Canonical, other.Canonical)

	again, err := canonicalize("account-123")
	require.NoError(t, err)
	require.Equal(t, id.Canonical, again.Canonical, "hashing must be deterministic")
}

func TestCanonicalizeSystemStreamIsPadded(t *testing.T) {
	id, err := canonicalize("$deleted")
	require.NoError(t, err)
	require.True(t, id.IsSystem())
	require.Len(t, id.Canonical, canonicalIDWidth)
	require.True(t, strings.HasSuffix(id.Canonical, "$deleted"))
	require.Equal(t, byte('_'), id.Canonical[0], "left-padded with underscores")
}

func TestCanonicalizeRejectsEmptyAndAllSentinel(t *testing.T) {
	_, err := canonicalize("")
	require.Error(t, err)

	_, err = canonicalize(allStreamSentinel)
	require.Error(t, err)
}

func TestCanonicalizeRejectsOversizedSystemStream(t *testing.T) {
	name := "$" + strings.Repeat("x", canonicalIDWidth)
	_, err := canonicalize(name)
	require.Error(t, err)
}
