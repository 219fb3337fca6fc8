package pebble

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/s2"
)

// json is the jsoniter instance configured to be compatible with the
// standard library, matching the teacher's pebble driver exactly.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// record is the on-disk shape of a single message, addressed by its
// global position (see messageKey). It carries everything a
// StoredMessage needs plus the canonical/original stream identity, so
// a stream-index or message-index hit never needs a second table.
type record struct {
	Canonical     string `json:"canonical"`
	Original      string `json:"original"`
	StreamVersion int64  `json:"stream_version"`
	Position      int64  `json:"position"`
	MessageID     string `json:"message_id"`
	CreatedUTC    int64  `json:"created_utc"` // unix nanoseconds
	Type          string `json:"type"`
	Payload       string `json:"payload"`
	Metadata      string `json:"metadata"`
}

func encodeRecord(r record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return s2.Encode(nil, data), nil
}

func decodeRecord(compressed []byte) (record, error) {
	data, err := s2.Decode(nil, compressed)
	if err != nil {
		return record{}, err
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return record{}, err
	}
	return r, nil
}

func (r record) createdAt() time.Time {
	return time.Unix(0, r.CreatedUTC).UTC()
}
