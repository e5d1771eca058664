package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		raw  string
		want ID
	}{
		{`"abc"`, "abc"},
		{`" abc "`, "abc"},
		{`42`, "42"},
		{`1234567890123`, "1234567890123"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &id), "raw=%s", tc.raw)
		require.Equal(t, tc.want, id, "raw=%s", tc.raw)
	}

	var id ID
	require.Error(t, json.Unmarshal([]byte(`{"nested":1}`), &id))
}

func TestConversation_DecodesNumericID(t *testing.T) {
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(`{"id":7,"full_name":"Jane Doe","phone":"+15551234567"}`), &c))
	require.Equal(t, ID("7"), c.ID)
	require.Equal(t, "Jane Doe", c.FullName)
	require.False(t, c.ID.Empty())
}

func TestMessage_FromCounterparty(t *testing.T) {
	require.True(t, Message{Sender: "lead"}.FromCounterparty(SenderLead))
	require.True(t, Message{Sender: " Lead "}.FromCounterparty(SenderLead))
	require.True(t, Message{Sender: "lead"}.FromCounterparty(""))
	require.False(t, Message{Sender: "user"}.FromCounterparty(SenderLead))
	require.False(t, Message{Sender: ""}.FromCounterparty(SenderLead))
	require.True(t, Message{Sender: "contact"}.FromCounterparty("contact"))
}

func TestLastMessage(t *testing.T) {
	_, ok := LastMessage(nil)
	require.False(t, ok)

	last, ok := LastMessage([]Message{{ID: "1"}, {ID: "2"}})
	require.True(t, ok)
	require.Equal(t, ID("2"), last.ID)
}
