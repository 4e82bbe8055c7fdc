// Package events defines the queue change events published on a Redis
// stream for DJ booth displays and other downstream consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream carrying queue events.
const StreamName = "setlist:events"

// EventType identifies a queue change.
type EventType string

const (
	RequestCreated      EventType = "request.created"
	RequestMerged       EventType = "request.merged"
	RequestUpdated      EventType = "request.updated"
	QueueReordered      EventType = "queue.reordered"
	QueueBulkApplied    EventType = "queue.bulk_applied"
	QueueControlApplied EventType = "queue.control_applied"
)

// QueueEvent is the envelope for every event on StreamName.
type QueueEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewQueueEvent stamps payload with a fresh ID and the current UTC time.
func NewQueueEvent(eventType EventType, payload any) QueueEvent {
	return QueueEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// RequestPayload describes one queue entry after a submission or edit.
type RequestPayload struct {
	EntryID  int64  `json:"entry_id"`
	TrackID  string `json:"track_id"`
	Track    string `json:"track"`
	Status   string `json:"status"`
	SetOrder *int   `json:"set_order,omitempty"`
	Votes    int    `json:"votes"`
	Priority int    `json:"priority"`
	// Changed lists the admin-edited fields on RequestUpdated.
	Changed []string `json:"changed,omitempty"`
}

// BatchPayload describes reorder, bulk and control operations.
type BatchPayload struct {
	Action   string  `json:"action"`
	EntryIDs []int64 `json:"entry_ids,omitempty"`
	Affected int64   `json:"affected"`
}
