package amqp

import (
	"testing"
	"time"
)

func TestNewSubmissionQueuedMessage(t *testing.T) {
	msg := NewSubmissionQueuedMessage("outbox-123")

	if msg.ID != "outbox-123" {
		t.Errorf("NewSubmissionQueuedMessage() ID = %v, want outbox-123", msg.ID)
	}
	if msg.QueuedAt.IsZero() {
		t.Error("NewSubmissionQueuedMessage() QueuedAt should not be zero")
	}
	if time.Since(msg.QueuedAt) > time.Second {
		t.Error("NewSubmissionQueuedMessage() QueuedAt should be recent")
	}
}

func TestSubmissionQueuedMessage_JSON(t *testing.T) {
	queuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &SubmissionQueuedMessage{
		ID:       "outbox-123",
		QueuedAt: queuedAt,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SubmissionQueuedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SubmissionQueuedMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, msg.ID)
	}
	if !parsed.QueuedAt.Equal(msg.QueuedAt) {
		t.Errorf("Parsed QueuedAt = %v, want %v", parsed.QueuedAt, msg.QueuedAt)
	}
}

func TestSubmissionQueuedMessage_InvalidJSON(t *testing.T) {
	if _, err := SubmissionQueuedMessageFromJSON([]byte(`{"id": 42}`)); err == nil {
		t.Error("SubmissionQueuedMessageFromJSON() should fail with invalid JSON")
	}
}

func TestSubmissionQueuedMessage_MissingID(t *testing.T) {
	if _, err := SubmissionQueuedMessageFromJSON([]byte(`{"queued_at":"2026-03-01T12:00:00Z"}`)); err == nil {
		t.Error("SubmissionQueuedMessageFromJSON() should reject a message without an id")
	}
}
