package websocket

import (
	"encoding/json"
	"time"
)

// Event types emitted on the live channel.
const (
	EventNotification = "notification"
	EventRead         = "notification:read"
	EventAllRead      = "notifications:all-read"
)

// Event is a message sent to live subscribers.
// Format: { type, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NotificationDelivered creates a notification event carrying the record.
func NotificationDelivered(payload interface{}) Event {
	return NewEvent(EventNotification, payload)
}

// NotificationRead creates a notification:read event carrying the id.
func NotificationRead(id int64) Event {
	return NewEvent(EventRead, map[string]int64{"id": id})
}

// AllNotificationsRead creates a notifications:all-read event.
func AllNotificationsRead(count int64) Event {
	return NewEvent(EventAllRead, map[string]int64{"count": count})
}
