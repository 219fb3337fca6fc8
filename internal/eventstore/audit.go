package eventstore

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/google/uuid"
)

// auditJSON is the jsoniter instance used to render $deleted audit
// payloads, the same stdlib-compatible configuration the pebble driver
// uses for its record codec (internal/eventstore/pebble/codec.go).
var auditJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// newAuditMessageID mints a fresh id for engine-emitted $deleted
// events; callers never supply one for these.
func newAuditMessageID() string {
	return uuid.NewString()
}

type streamDeletedEvent struct {
	StreamID string `json:"stream_id"`
}

type messageDeletedEvent struct {
	StreamID  string `json:"stream_id"`
	MessageID string `json:"message_id"`
}

// streamDeletedPayload renders the {stream_id} payload of spec.md §4.4.
// Stream names are caller-supplied and may contain arbitrary
// characters, so this marshals a struct rather than hand-building the
// JSON string.
func streamDeletedPayload(streamID string) string {
	b, err := auditJSON.Marshal(streamDeletedEvent{StreamID: streamID})
	if err != nil {
		// Marshaling a plain string field cannot fail.
		panic(err)
	}
	return string(b)
}

// messageDeletedPayload renders the {stream_id, message_id} payload of
// spec.md §4.4.
func messageDeletedPayload(streamID, messageID string) string {
	b, err := auditJSON.Marshal(messageDeletedEvent{StreamID: streamID, MessageID: messageID})
	if err != nil {
		panic(err)
	}
	return string(b)
}
