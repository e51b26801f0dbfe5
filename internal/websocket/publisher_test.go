package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	accountID := uuid.New()

	client := newMockClient("client-1", accountID)
	hub.Register(client)

	// Publish event via EventPublisher interface
	var publisher EventPublisher = hub
	publisher.Publish(accountID, NotificationDelivered(map[string]interface{}{"id": float64(42)}))

	// Allow async broadcast to complete
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, client.GetMessages(), 1)
}

func TestNoOpPublisher(t *testing.T) {
	publisher := &NoOpPublisher{}
	accountID := uuid.New()

	assert.NotPanics(t, func() {
		publisher.Publish(accountID, NotificationDelivered(nil))
	})
	assert.False(t, publisher.IsOnline(accountID))
}
