package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of crew message. The set is closed: the
// worker and coordinator dispatch on it with exhaustive switches, so a new
// kind is a compile-visible addition at every handler.
type MessageType string

const (
	// MsgTaskAssigned is sent coordinator → worker to start a task.
	MsgTaskAssigned MessageType = "task_assigned"
	// MsgTaskComplete is sent worker → coordinator on successful execution.
	MsgTaskComplete MessageType = "task_complete"
	// MsgTaskFailed is sent worker → coordinator when execution fails.
	MsgTaskFailed MessageType = "task_failed"
	// MsgReviewRequest is sent coordinator → reviewer worker.
	MsgReviewRequest MessageType = "review_request"
	// MsgReviewPassed is sent worker → coordinator when a review approves.
	MsgReviewPassed MessageType = "review_passed"
	// MsgReworkNeeded is sent worker → coordinator when a review rejects.
	MsgReworkNeeded MessageType = "rework_needed"
	// MsgReworkAssigned is sent coordinator → worker to retry with feedback.
	MsgReworkAssigned MessageType = "rework_assigned"
	// MsgStatusUpdate is a periodic worker → coordinator progress heartbeat.
	MsgStatusUpdate MessageType = "status_update"
	// MsgScratchpadWrite publishes a shared note worker → coordinator.
	MsgScratchpadWrite MessageType = "scratchpad_write"
	// MsgShutdown is broadcast coordinator → all workers to stop.
	MsgShutdown MessageType = "shutdown"
)

// CoordinatorName is the reserved recipient/sender name for the coordinator.
const CoordinatorName = "coordinator"

// CrewMessage is the unit of communication between the coordinator and
// workers. Messages are immutable once sent; they are the only channel
// through which crew components exchange state.
type CrewMessage struct {
	// Type is the kind of message.
	Type MessageType `json:"type"`
	// Sender is "coordinator" or a worker instance name.
	Sender string `json:"sender"`
	// Recipient is a worker instance name, "coordinator", or "all".
	Recipient string `json:"recipient"`
	// TaskID is the related task, if any.
	TaskID string `json:"task_id,omitempty"`
	// Content is the main text: task description, result output, or feedback.
	Content string `json:"content,omitempty"`
	// Metadata carries free-form key/value payload (tokens, elapsed, flags).
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`
	// MsgID uniquely identifies the message.
	MsgID string `json:"msg_id"`
}

// NewMessage creates a CrewMessage with a fresh ID and timestamp.
func NewMessage(t MessageType, sender, recipient string) CrewMessage {
	return CrewMessage{
		Type:      t,
		Sender:    sender,
		Recipient: recipient,
		Timestamp: time.Now(),
		MsgID:     uuid.New().String()[:12],
	}
}

// MetaInt64 reads an int64 metadata value, tolerating the numeric types
// that survive map[string]any round-trips.
func (m CrewMessage) MetaInt64(key string) int64 {
	switch v := m.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// MetaFloat reads a float64 metadata value.
func (m CrewMessage) MetaFloat(key string) float64 {
	switch v := m.Metadata[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// MetaString reads a string metadata value.
func (m CrewMessage) MetaString(key string) string {
	s, _ := m.Metadata[key].(string)
	return s
}

// MetaBool reads a bool metadata value.
func (m CrewMessage) MetaBool(key string) bool {
	b, _ := m.Metadata[key].(bool)
	return b
}

// MetaStrings reads a string-slice metadata value, tolerating []any from
// deserialized payloads.
func (m CrewMessage) MetaStrings(key string) []string {
	switch v := m.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
