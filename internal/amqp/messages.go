package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// NoteRecordedMessage announces a voice note saved locally. It carries only
// the note ID; the worker reads the full note from the database.
type NoteRecordedMessage struct {
	NoteID    string    `json:"note_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNoteRecordedMessage creates a new message for the given note
func NewNoteRecordedMessage(noteID string) *NoteRecordedMessage {
	return &NoteRecordedMessage{
		NoteID:    noteID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NoteRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NoteRecordedMessageFromJSON creates a message from JSON bytes
func NoteRecordedMessageFromJSON(data []byte) (*NoteRecordedMessage, error) {
	var msg NoteRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.NoteID == "" {
		return nil, errors.New("message has no note_id")
	}
	return &msg, nil
}
