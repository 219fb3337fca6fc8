// Package pebble is the embedded-engine storage driver for
// internal/eventstore, backed by github.com/cockroachdb/pebble. It is
// grounded on the teacher's internal/store/pebble package: same
// zero-padded lexicographic key scheme and M:/SI: prefixes, trimmed of
// the namespace/category/consumer-group indices (CI:, NS:) that have no
// analogue in spec.md's single-store, single-category-less data model,
// and with the stream head derived by reverse-scanning the stream
// index rather than tracked in a separate mutable VI: counter — the
// same "version/position are derived from the rows themselves" rule
// the sqlite and postgres drivers follow, so that a soft delete (which
// simply removes rows) is visible identically across all three.
//
// Key schema:
//
//	M:{gp_20}                 -> compressed message record
//	SI:{canonical}:{ver_20}   -> gp_20                  (stream index)
//	MI:{canonical}:{msg_id}   -> ver_20                 (message-id index)
//	SM:{canonical}            -> original stream name   (metadata)
//	GP                        -> next_gp_20             (global counter)
package pebble

import (
	"fmt"
	"strconv"
)

const (
	prefixMessage    = "M:"
	prefixStreamIdx  = "SI:"
	prefixMessageIdx = "MI:"
	prefixStreamMeta = "SM:"
	keyGlobalCounter = "GP"
)

const intWidth = 20

func encodeInt64(n int64) string {
	return fmt.Sprintf("%0*d", intWidth, n)
}

func decodeInt64(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

func messageKey(gp int64) []byte {
	return []byte(prefixMessage + encodeInt64(gp))
}

func streamIndexKey(canonical string, version int64) []byte {
	return []byte(prefixStreamIdx + canonical + ":" + encodeInt64(version))
}

func streamIndexPrefix(canonical string) []byte {
	return []byte(prefixStreamIdx + canonical + ":")
}

func messageIndexKey(canonical, messageID string) []byte {
	return []byte(prefixMessageIdx + canonical + ":" + messageID)
}

func streamMetaKey(canonical string) []byte {
	return []byte(prefixStreamMeta + canonical)
}

// prefixUpperBound returns the smallest key that is strictly greater
// than every key starting with prefix, for use as an IterOptions
// UpperBound that scopes a scan to exactly that prefix.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}
