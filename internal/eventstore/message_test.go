package eventstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewMessageValidate(t *testing.T) {
	valid := NewMessage{MessageID: uuid.NewString(), Type: "account-opened", Payload: "{}"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		msg  NewMessage
	}{
		{"empty id", NewMessage{MessageID: "", Type: "account-opened"}},
		{"non-uuid id", NewMessage{MessageID: "not-a-uuid", Type: "account-opened"}},
		{"empty type", NewMessage{MessageID: uuid.NewString(), Type: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.msg.Validate())
		})
	}
}
