// Package errors declares the error kinds of the event store core.
//
// These are kinds, not exhaustive types. WrongExpectedVersion,
// StreamDeleted and BackendFault each have a matching typed struct that
// carries diagnostic fields and satisfies Is against the sentinel, the
// same shape as the teacher's VersionConflictError; ObjectDisposed,
// OperationCancelled and SystemStreamProtected are plain sentinels.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongExpectedVersion is the concurrency-conflict / idempotency-
	// mismatch sentinel. Never retried by the core.
	ErrWrongExpectedVersion = errors.New("wrong expected version")

	// ErrStreamDeleted marks a target that was hard-deleted and cannot
	// be resurrected as a different identity.
	ErrStreamDeleted = errors.New("stream deleted")

	// ErrObjectDisposed is returned by any public operation called
	// after Close.
	ErrObjectDisposed = errors.New("object disposed")

	// ErrOperationCancelled is returned when a caller's context is
	// cancelled at an observed I/O boundary.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrBackendFault marks a driver-level fault reported by a storage
	// primitive.
	ErrBackendFault = errors.New("backend fault")

	// ErrSystemStreamProtected is returned when a caller attempts to
	// delete a system stream (e.g. $deleted) or a message from one, so
	// that it stays immutable. See DESIGN.md's Open Question decision.
	ErrSystemStreamProtected = errors.New("system stream is protected from deletion")
)

// WrongExpectedVersionError carries the stream and the expected/actual
// versions behind a WrongExpectedVersion conflict.
type WrongExpectedVersionError struct {
	Stream   string
	Expected int64
	Actual   int64 // the stream's current version when checked (-1 if it has no messages)
}

func (e *WrongExpectedVersionError) Error() string {
	return fmt.Sprintf("stream %q: wrong expected version: expected %d, actual %d",
		e.Stream, e.Expected, e.Actual)
}

// Is reports whether target is the ErrWrongExpectedVersion sentinel.
func (e *WrongExpectedVersionError) Is(target error) bool {
	return target == ErrWrongExpectedVersion
}

// NewWrongExpectedVersion builds a WrongExpectedVersionError.
func NewWrongExpectedVersion(stream string, expected, actual int64) error {
	return &WrongExpectedVersionError{Stream: stream, Expected: expected, Actual: actual}
}

// DuplicateMessageIDError is the WrongExpectedVersion subclass raised
// when a message id in the batch collides with an existing message
// that is not at the replay position.
type DuplicateMessageIDError struct {
	Stream    string
	MessageID string
}

func (e *DuplicateMessageIDError) Error() string {
	return fmt.Sprintf("stream %q: duplicate message id %q at a non-replay position",
		e.Stream, e.MessageID)
}

// Is reports whether target is ErrWrongExpectedVersion: duplicate-id is
// a subclass at the API surface per spec.
func (e *DuplicateMessageIDError) Is(target error) bool {
	return target == ErrWrongExpectedVersion
}

// NewDuplicateMessageID builds a DuplicateMessageIDError.
func NewDuplicateMessageID(stream, messageID string) error {
	return &DuplicateMessageIDError{Stream: stream, MessageID: messageID}
}

// StreamDeletedError names the stream whose identity cannot be reused.
type StreamDeletedError struct {
	Stream string
}

func (e *StreamDeletedError) Error() string {
	return fmt.Sprintf("stream %q: deleted", e.Stream)
}

// Is reports whether target is the ErrStreamDeleted sentinel.
func (e *StreamDeletedError) Is(target error) bool {
	return target == ErrStreamDeleted
}

// NewStreamDeleted builds a StreamDeletedError.
func NewStreamDeleted(stream string) error {
	return &StreamDeletedError{Stream: stream}
}

// BackendFaultError wraps a driver-level error with a short human
// description and the backend diagnostics attached via %w.
type BackendFaultError struct {
	Op  string
	Err error
}

func (e *BackendFaultError) Error() string {
	return fmt.Sprintf("backend fault during %s: %v", e.Op, e.Err)
}

// Is reports whether target is the ErrBackendFault sentinel.
func (e *BackendFaultError) Is(target error) bool {
	return target == ErrBackendFault
}

// Unwrap exposes the underlying driver error.
func (e *BackendFaultError) Unwrap() error {
	return e.Err
}

// NewBackendFault wraps err as a BackendFaultError naming the failing
// operation. Returns nil if err is nil.
func NewBackendFault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendFaultError{Op: op, Err: err}
}

// IsWrongExpectedVersion reports whether err is (or wraps) a
// WrongExpectedVersion conflict.
func IsWrongExpectedVersion(err error) bool {
	return errors.Is(err, ErrWrongExpectedVersion)
}

// IsBackendFault reports whether err is (or wraps) a backend fault.
func IsBackendFault(err error) bool {
	return errors.Is(err, ErrBackendFault)
}
