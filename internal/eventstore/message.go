package eventstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExpectedVersion is the caller's belief about a stream's head at
// append/delete time, the basis of optimistic concurrency (spec §6.4).
type ExpectedVersion int64

const (
	// ExpectedNoStream requires the stream to have never been appended
	// to: no metadata row and no messages.
	ExpectedNoStream ExpectedVersion = -1
	// ExpectedEmptyStream requires the stream's metadata row to already
	// exist (e.g. left behind by a prior DeleteStream) with zero
	// messages. ExpectedNoStream instead requires that row to be
	// absent; the two reject each other's case even though both see
	// StreamVersion == -1.
	ExpectedEmptyStream ExpectedVersion = -2
	// ExpectedAny performs no version check.
	ExpectedAny ExpectedVersion = -3
)

// StreamVersion sentinels used as read cursors.
const (
	// StreamVersionStart is the version of the first message of a
	// stream, used as the starting point of a forward read.
	StreamVersionStart int64 = 0
	// StreamVersionEnd requests the latest version, used as the
	// starting point of a backward read.
	StreamVersionEnd int64 = -1
	// streamVersionExhausted is the internal NextCursor.FromVersion
	// value for a backward read that has consumed version 0. It must
	// differ from StreamVersionEnd: a page's NextCursor.FromVersion of
	// StreamVersionEnd would re-enter the "start from the latest
	// version" branch instead of staying empty, breaking NextPage's
	// is_end/empty-page invariant the first time version 0 is the last
	// row of a page.
	streamVersionExhausted int64 = -2
)

// Position sentinels for the global log.
const (
	// PositionStart is the position assigned to the first message ever
	// committed to the log. It is a position value, not a read cursor:
	// ReadAllForwards's fromPositionExclusive is a strictly-exclusive
	// lower bound, so pass PositionBeforeStart, not PositionStart, to
	// include this row in the first page.
	PositionStart int64 = 0
	// PositionBeforeStart is the fromPositionExclusive value for
	// ReadAllForwards's first call, so that PositionStart itself is
	// included in the page.
	PositionBeforeStart int64 = -1
	// PositionEnd requests the end of the global log.
	PositionEnd int64 = -1
)

// Direction selects forward or backward paging.
type Direction int

const (
	// Forward reads in increasing version/position order.
	Forward Direction = iota
	// Backward reads in decreasing version/position order.
	Backward
)

// NewMessage is a caller-constructed message awaiting append. It is
// immutable once submitted; the engine never mutates the value passed
// in, it returns an AppendResult on success.
type NewMessage struct {
	MessageID string // caller-supplied, unique within the stream
	Type      string
	Payload   string // opaque UTF-8 JSON
	Metadata  string // opaque UTF-8 JSON
}

// Validate checks the invariants NewMessage must satisfy before it is
// handed to a driver: a well-formed, non-empty message id and a
// non-empty type.
func (m NewMessage) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("eventstore: message id must not be empty")
	}
	if _, err := uuid.Parse(m.MessageID); err != nil {
		return fmt.Errorf("eventstore: message id %q is not a UUID: %w", m.MessageID, err)
	}
	if m.Type == "" {
		return fmt.Errorf("eventstore: message type must not be empty")
	}
	return nil
}

// StoredMessage is an immutable, committed message as returned by the
// read engine.
type StoredMessage struct {
	MessageID     string
	StreamName    string // original (echoed-back) stream identity
	StreamVersion int64
	Position      int64
	CreatedUTC    time.Time
	Type          string

	// Payload and Metadata are populated only when the read was made
	// with prefetch=true; otherwise they are empty and the caller is
	// expected to fetch them lazily via ReadMessageData.
	Payload  string
	Metadata string
}

// AppendResult is returned by every successful append.
type AppendResult struct {
	CurrentVersion  int64
	CurrentPosition int64
}

// PageReadStatus reports whether a stream page read found its stream.
type PageReadStatus int

const (
	// StreamFound means the target stream exists (or existed long
	// enough to have messages at the requested range).
	StreamFound PageReadStatus = iota
	// StreamNotFound means the stream has never existed or was
	// soft-deleted; never an error, only a page status (spec §7).
	StreamNotFound
)

// Cursor is the re-entrant handle a caller uses to fetch the next
// stream page, in place of the captured `read_next` closure spec.md
// §4.3 describes: a plain record of the next call's bind parameters
// (spec.md §9's Design Note), passed to NextPage rather than invoked
// directly. It is the entire state needed to resume a read — nothing
// about it references the engine that produced it.
type Cursor struct {
	Stream      string
	FromVersion int64
	MaxCount    int
	Direction   Direction
	Prefetch    bool
}

// AllCursor is Cursor's global-log counterpart, keyed on position and
// resumed via NextAllPage.
type AllCursor struct {
	FromPositionExclusive int64
	MaxCount              int
	Direction             Direction
	Prefetch              bool
}

// ReadStreamPage is one bounded batch of a single stream's messages,
// plus enough information to request the next page without a second
// round trip (spec §4.3, "one extra row" look-ahead).
type ReadStreamPage struct {
	Stream             string
	Status             PageReadStatus
	FromVersion        int64
	NextVersion        int64
	NextCursor         Cursor
	Direction          Direction
	IsEnd              bool
	LastStreamVersion  int64
	LastStreamPosition int64
	Messages           []StoredMessage
}

// ReadAllPage is the global-log counterpart of ReadStreamPage, keyed on
// position rather than stream version.
type ReadAllPage struct {
	FromPositionExclusive int64
	NextPosition          int64
	NextCursor            AllCursor
	Direction             Direction
	IsEnd                 bool
	Messages              []StoredMessage
}
