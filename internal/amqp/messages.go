package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// IntakeSyncMessage asks the worker to mirror one locally stored intake
// event. It carries only the event ID; the worker reads the event itself.
type IntakeSyncMessage struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewIntakeSyncMessage creates a sync message for eventID.
func NewIntakeSyncMessage(eventID string) *IntakeSyncMessage {
	return &IntakeSyncMessage{
		EventID:   eventID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *IntakeSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// IntakeSyncMessageFromJSON decodes a message and rejects ones without an event ID.
func IntakeSyncMessageFromJSON(data []byte) (*IntakeSyncMessage, error) {
	var msg IntakeSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" {
		return nil, errors.New("intake sync message without event_id")
	}
	return &msg, nil
}
