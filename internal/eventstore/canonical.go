package eventstore

import (
	"crypto/sha1" //nolint:gosec // used only as a stable, non-adversarial identity digest
	"encoding/hex"
	"fmt"
	"strings"
)

// canonicalIDWidth is the fixed width of a canonical stream id, in
// characters (spec: "fixed-width 40-character hash").
const canonicalIDWidth = 40

// systemStreamSigil marks a stream name as a system stream, reserved
// for engine-emitted audit events.
const systemStreamSigil = '$'

// allStreamSentinel is the one reserved name no caller may use.
const allStreamSentinel = "$all"

// StreamIdentity pairs a caller-supplied stream name with its
// canonical internal key.
type StreamIdentity struct {
	Original  string
	Canonical string
}

// IsSystem reports whether the original name is a system stream.
func (id StreamIdentity) IsSystem() bool {
	return isSystemStreamName(id.Original)
}

func isSystemStreamName(name string) bool {
	return len(name) > 0 && name[0] == systemStreamSigil
}

// canonicalize maps a caller-supplied stream name to its canonical
// internal key, per spec.md §4.1.
//
// Non-system streams hash to the lowercase hex of a 160-bit digest
// (20 bytes -> exactly 40 hex characters). System streams skip
// hashing: the name is used directly, left-padded with underscores to
// the fixed width, and names longer than the width are rejected.
// Underscore is not a hex digit, so a padded system canonical id can
// never collide with a hashed one.
func canonicalize(name string) (StreamIdentity, error) {
	if name == "" {
		return StreamIdentity{}, fmt.Errorf("eventstore: stream name must not be empty")
	}
	if name == allStreamSentinel {
		return StreamIdentity{}, fmt.Errorf("eventstore: %q is a reserved name", allStreamSentinel)
	}

	if isSystemStreamName(name) {
		if len(name) > canonicalIDWidth {
			return StreamIdentity{}, fmt.Errorf(
				"eventstore: system stream name %q exceeds %d bytes", name, canonicalIDWidth)
		}
		return StreamIdentity{
			Original:  name,
			Canonical: padSystemStreamName(name),
		}, nil
	}

	sum := sha1.Sum([]byte(name)) //nolint:gosec
	return StreamIdentity{
		Original:  name,
		Canonical: hex.EncodeToString(sum[:]),
	}, nil
}

// systemStreamPadByte left-pads system stream canonical ids. It must
// be a byte no SQL/KV backend rejects in a text value (unlike NUL,
// which PostgreSQL's TEXT type refuses outright) and must fall
// outside the hex alphabet so padded ids never collide with a hashed
// one.
const systemStreamPadByte = '_'

// padSystemStreamName left-pads name to canonicalIDWidth.
func padSystemStreamName(name string) string {
	if len(name) >= canonicalIDWidth {
		return name
	}
	var b strings.Builder
	b.Grow(canonicalIDWidth)
	for i := 0; i < canonicalIDWidth-len(name); i++ {
		b.WriteByte(systemStreamPadByte)
	}
	b.WriteString(name)
	return b.String()
}

// deletedStreamName is the system stream the delete engine appends its
// audit events to.
const deletedStreamName = "$deleted"
