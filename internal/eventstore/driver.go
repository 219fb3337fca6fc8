package eventstore

import (
	"context"
	"time"
)

// Driver is the abstract contract over a relational (or relational-
// shaped) backend, per spec.md §6.2. It owns connection acquisition,
// transaction boundaries, and SQL/key-value generation; the engines in
// this package own the append/read/delete semantics and compose the
// primitives below to implement them identically across backends.
type Driver interface {
	// CreateSchema provisions the two logical tables of spec.md §6.3
	// (streams, messages) if they do not already exist. Idempotent.
	CreateSchema(ctx context.Context) error

	// WithTx runs fn inside a single backend transaction. The
	// transaction commits if fn returns nil and rolls back otherwise
	// (including on panic propagation and context cancellation). This
	// is the only place version allocation, idempotency checks, and
	// row insertion may cross — spec.md §5 requires all three to share
	// one transaction.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// StreamPage returns up to requestCount rows of the canonical
	// stream starting at fromVersion and moving in dir. found reports
	// whether the stream currently has any messages (a stream whose
	// messages were all deleted is not found); lastVersion and
	// lastPosition describe its current head (both -1 if !found).
	// Rows are returned without Payload/Metadata unless prefetch.
	StreamPage(ctx context.Context, canonical string, fromVersion int64, requestCount int, dir Direction, prefetch bool) (rows []StoredMessage, lastVersion int64, lastPosition int64, found bool, err error)

	// AllPage returns up to requestCount rows from the global log.
	// Forward reads start strictly after fromPositionExclusive;
	// backward reads start strictly before it (PositionEnd meaning
	// "from the current head").
	AllPage(ctx context.Context, fromPositionExclusive int64, requestCount int, dir Direction, prefetch bool) (rows []StoredMessage, err error)

	// HeadPosition returns the largest position currently committed,
	// or -1 if the log is empty.
	HeadPosition(ctx context.Context) (int64, error)

	// MessageData performs the lazy payload/metadata fetch for a
	// single message identified by its owning stream's canonical id
	// and its message id.
	MessageData(ctx context.Context, canonical string, messageID string) (payload string, metadata string, err error)

	// Close releases the underlying connection pool.
	Close() error
}

// Tx is the set of atomic, transaction-scoped primitives the append
// and delete engines compose. Implementations must serialize
// conflicting writers at least to the level required to make
// StreamVersion followed by InsertMessages race-free within one Tx
// (a single connection's transaction isolation is sufficient; the
// core does not hold any in-memory lock across the call, per spec.md
// §5 "Suspension points").
type Tx interface {
	// StreamVersion returns the canonical stream's current highest
	// stream_version, or -1 if it has no messages.
	StreamVersion(ctx context.Context, canonical string) (int64, error)

	// StreamRowExists reports whether the canonical stream has a
	// metadata row, independent of whether it currently has any
	// messages. This is what distinguishes ExpectedNoStream (no row:
	// the stream has never been appended to) from ExpectedEmptyStream
	// (a row exists but StreamVersion is -1, e.g. after DeleteStream
	// removed every message but left the metadata row per spec.md §3).
	StreamRowExists(ctx context.Context, canonical string) (bool, error)

	// MessageIDsInRange returns up to count message ids starting at
	// fromVersion (inclusive), in ascending stream_version order. It
	// returns fewer than count entries if the stream is shorter.
	MessageIDsInRange(ctx context.Context, canonical string, fromVersion int64, count int) ([]string, error)

	// MessageIDExists reports whether messageID already exists
	// anywhere in the canonical stream, regardless of position.
	MessageIDExists(ctx context.Context, canonical string, messageID string) (bool, error)

	// PositionAtVersion returns the global position assigned to the
	// message at the given stream_version.
	PositionAtVersion(ctx context.Context, canonical string, version int64) (int64, error)

	// InsertMessages inserts rows as a contiguous run starting at
	// startVersion, assigning each a monotonic global position, and
	// upserts the stream's metadata row (canonical/original identity).
	// now is used verbatim as created_utc for every row (spec.md §5
	// "Clock": the driver never reads a wall clock itself).
	InsertMessages(ctx context.Context, id StreamIdentity, startVersion int64, rows []NewMessage, now time.Time) (lastVersion int64, lastPosition int64, err error)

	// DeleteStreamMessages removes every message row of the canonical
	// stream and reports how many were removed. The stream's metadata
	// row is left untouched (spec.md §3: "metadata row may persist").
	DeleteStreamMessages(ctx context.Context, canonical string) (deletedCount int64, err error)

	// DeleteMessageByID removes a single message row identified by
	// message id, reporting whether a row was actually removed.
	DeleteMessageByID(ctx context.Context, canonical string, messageID string) (removed bool, err error)
}
