package websocket

import "github.com/google/uuid"

// EventPublisher defines the interface for publishing events to live subscribers
type EventPublisher interface {
	// Publish sends an event to all subscriptions registered for the account
	Publish(accountID uuid.UUID, event Event)
	// IsOnline reports whether the account has a live subscription
	IsOnline(accountID uuid.UUID) bool
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the account
func (h *Hub) Publish(accountID uuid.UUID, event Event) {
	h.Broadcast(accountID, event)
}

// NoOpPublisher is a publisher that does nothing (for testing or when WebSocket is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(accountID uuid.UUID, event Event) {}

// IsOnline always reports offline
func (n *NoOpPublisher) IsOnline(accountID uuid.UUID) bool { return false }
