// Package eventstore implements the core of an append-only event
// store layered on a storage Driver: optimistic concurrency and
// idempotent append, dual stream-version/global-position ordering,
// paged forward/backward reads, and soft/hard delete with an audit
// trail. See SPEC_FULL.md for the full specification this package
// implements.
package eventstore

import (
	"context"
	"sync"

	esErrors "github.com/eventstore/eventstore/internal/eventstore/errors"
	"github.com/eventstore/eventstore/internal/logger"
)

// EventStore is the public entry point: the C4/C5/C6 engines hang off
// it as methods, and C7 (this file) enforces the open/closed lifecycle
// around every one of them. Admission is gated the way the teacher's
// sqlite store gates its own Close (golang/internal/store/sqlite/store.go):
// operations hold mu for a read, Close takes it for a write. A write
// lock can only be acquired once every outstanding read lock has been
// released, so Close can never run concurrently with, or race, an
// operation it ought to have waited for.
type EventStore struct {
	driver Driver
	clock  Clock

	mu     sync.RWMutex
	closed bool
}

// Option configures an EventStore at construction time.
type Option func(*EventStore)

// WithClock overrides the default SystemClock. Tests substitute a
// deterministic clock.
func WithClock(c Clock) Option {
	return func(s *EventStore) { s.clock = c }
}

// Open wraps driver in a new EventStore, ready for use. It does not
// create the schema; call driver.CreateSchema beforehand if needed.
func Open(driver Driver, opts ...Option) *EventStore {
	s := &EventStore{
		driver: driver,
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// enter must be called at the top of every public operation, paired
// with leave via defer. It rejects calls once Close has been
// requested and holds mu for read until leave, so Close cannot
// proceed past its own Lock until every such call has returned
// (spec.md §4.5: "close() does not cancel in-flight operations; it
// waits for them").
func (s *EventStore) enter() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return esErrors.ErrObjectDisposed
	}
	return nil
}

func (s *EventStore) leave() {
	s.mu.RUnlock()
}

// Close marks the store closed to new operations, waits for in-flight
// operations to finish, and releases the driver. Close is idempotent:
// whichever caller (concurrent or subsequent) acquires mu first does
// the actual shutdown; every other caller blocks on mu until that one
// finishes, observes closed, and returns nil without touching the
// driver a second time.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.driver.Close()
}

// checkContext maps a cancelled/deadline-exceeded context into
// OperationCancelled, observed at the I/O boundary as spec.md §5
// requires ("every operation accepts a cancellation token observed at
// every I/O boundary").
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return esErrors.ErrOperationCancelled
	default:
		return nil
	}
}

func logFault(ctx context.Context, op string, err error) error {
	wrapped := esErrors.NewBackendFault(op, err)
	logger.FromContext(ctx).Warn().Err(err).Str("op", op).Msg("backend fault")
	return wrapped
}
