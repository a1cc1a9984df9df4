package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeNoteChanged MessageType = "note_changed"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NoteChangedPayload tells other devices of the same account that a pull is
// worthwhile. It never carries note contents.
type NoteChangedPayload struct {
	NoteID   string `json:"note_id"`
	DeviceID string `json:"device_id"`
}

func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

func (m *Message) UnmarshalPayload(v any) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
