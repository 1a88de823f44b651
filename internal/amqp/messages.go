package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionQueuedMessage tells the worker that an outbox entry is waiting
// for delivery to the ledger. The message carries only the outbox ID; the
// worker reads the entry itself from SQLite so the queue never holds expense
// data.
type SubmissionQueuedMessage struct {
	ID       string    `json:"id"`
	QueuedAt time.Time `json:"queued_at"`
}

func NewSubmissionQueuedMessage(id string) *SubmissionQueuedMessage {
	return &SubmissionQueuedMessage{
		ID:       id,
		QueuedAt: time.Now(),
	}
}

func (m *SubmissionQueuedMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal submission queued message: %w", err)
	}
	return data, nil
}

func SubmissionQueuedMessageFromJSON(data []byte) (*SubmissionQueuedMessage, error) {
	var m SubmissionQueuedMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal submission queued message: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("submission queued message missing id")
	}
	return &m, nil
}
