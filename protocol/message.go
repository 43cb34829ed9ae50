package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Action is the kind of a discovery message.
type Action string

// The three actions of the discovery handshake: announce presence,
// acknowledge presence, signal completion.
const (
	ActionDisco Action = "DISCO"
	ActionReply Action = "REPLY"
	ActionEnd   Action = "END"
)

// UnknownActionError indicates a discovery protocol violation: a consumed
// message carried an action outside the DISCO/REPLY/END set. It is fatal
// for the current discovery session.
type UnknownActionError struct {
	Action Action
}

func (e UnknownActionError) Error() string {
	return fmt.Sprintf("unknown discovery action %q", string(e.Action))
}

// Message is the wire envelope for the discovery handshake. Reply is set
// only on REPLY messages, and carries the identity being acknowledged.
type Message struct {
	Action Action   `json:"action"`
	Source Identity `json:"source"`
	Reply  Identity `json:"reply,omitempty"`
}

// Encode serializes the message as a self-contained JSON text record.
func (m Message) Encode() ([]byte, error) {
	record, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding discovery message")
	}
	return record, nil
}

// ParseMessage decodes a wire record, rejecting actions outside the
// protocol set.
func ParseMessage(record []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(record, &m); err != nil {
		return Message{}, errors.Wrap(err, "decoding discovery message")
	}
	switch m.Action {
	case ActionDisco, ActionReply, ActionEnd:
		return m, nil
	default:
		return Message{}, UnknownActionError{Action: m.Action}
	}
}
