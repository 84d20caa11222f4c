package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"rentbook/internal/core"
)

// ChangeMessage announces that the ledger persisted a mutation. It carries
// no data: consumers re-read the blob store for the current state.
type ChangeMessage struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingOperation = errors.New("change message without operation")

// NewChangeMessage wraps change with a fresh message id.
func NewChangeMessage(change core.Change) *ChangeMessage {
	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{
		ID:        uuid.NewString(),
		Operation: change.Operation,
		Keys:      append([]string(nil), change.Keys...),
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects ones without an
// operation.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Operation == "" {
		return nil, errMissingOperation
	}
	return &msg, nil
}

// Change converts the message back into a core.Change.
func (m *ChangeMessage) Change() core.Change {
	return core.Change{Operation: m.Operation, Keys: m.Keys, Timestamp: m.Timestamp}
}
