package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an opaque provider identifier. The messaging API emits ids as JSON
// strings or numbers depending on the endpoint, so both decode to the same
// textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("domain: decode id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Empty reports whether the id carries no usable value.
func (id ID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// Conversation is a thread between the account owner and a lead, as listed by
// the messaging provider.
type Conversation struct {
	ID       ID     `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Sender classifies who authored a message.
type Sender string

// SenderLead is the provider's classification for the counterparty.
const SenderLead Sender = "lead"

// Message is one entry of a conversation's history. Ordering is positional:
// the last element of a history is the newest message.
type Message struct {
	ID     ID     `json:"id"`
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// FromCounterparty reports whether the message was authored by the given
// counterparty classification. Comparison ignores case and surrounding space.
func (m Message) FromCounterparty(counterparty Sender) bool {
	want := strings.TrimSpace(string(counterparty))
	if want == "" {
		want = string(SenderLead)
	}
	return strings.EqualFold(strings.TrimSpace(string(m.Sender)), want)
}

// LastMessage returns the newest message of a history.
func LastMessage(history []Message) (Message, bool) {
	if len(history) == 0 {
		return Message{}, false
	}
	return history[len(history)-1], true
}
