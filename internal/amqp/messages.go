package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ImportRequestMessage asks a worker to import Source. An empty Source means
// the worker's configured default input.
type ImportRequestMessage struct {
	ImportID    string    `json:"import_id"`
	Source      string    `json:"source,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewImportRequestMessage creates a request with a fresh import id.
func NewImportRequestMessage(source string) *ImportRequestMessage {
	return &ImportRequestMessage{
		ImportID:    uuid.NewString(),
		Source:      source,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *ImportRequestMessage) Validate() error {
	if m.ImportID == "" {
		return errors.New("import request without import_id")
	}
	if _, err := uuid.Parse(m.ImportID); err != nil {
		return errors.New("import request with malformed import_id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ImportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportRequestMessageFromJSON decodes and validates a request.
func ImportRequestMessageFromJSON(data []byte) (*ImportRequestMessage, error) {
	var msg ImportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ImportCompletedMessage reports the outcome of one import run.
type ImportCompletedMessage struct {
	ImportID    string    `json:"import_id"`
	Source      string    `json:"source"`
	Records     int       `json:"records"`
	Errors      int       `json:"errors"`
	Persisted   bool      `json:"persisted"`
	Failure     string    `json:"failure,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// ToJSON converts the message to JSON bytes
func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportCompletedMessageFromJSON decodes an import-completed event.
func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
