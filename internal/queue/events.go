package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fedimux/internal/model"
)

// Event types for the push stream
const (
	EventPushReceived    = "push_received"
	EventAccountsChanged = "accounts_changed"
)

// Stream names
const (
	StreamPush = "stream:push"
)

// Consumer group name for push workers
const (
	ConsumerGroupPush = "push_workers"
)

// PushEvent is an event published to the push stream: either an inbound
// push envelope to route, or a change of the signed-in account set.
type PushEvent struct {
	ID        string `json:"id"`        // Application-level event ID
	Type      string `json:"type"`      // EventPushReceived, EventAccountsChanged
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Push events
	Envelope *model.PushEnvelope `json:"envelope,omitempty"`
}

// NewPushReceivedEvent wraps an inbound envelope for the stream. Workers
// will route it through the push pipeline.
func NewPushReceivedEvent(envelope model.PushEnvelope) PushEvent {
	return PushEvent{
		ID:        uuid.NewString(),
		Type:      EventPushReceived,
		Timestamp: time.Now().Unix(),
		Envelope:  &envelope,
	}
}

// NewAccountsChangedEvent signals a sign-in or sign-out. Workers will
// trigger a badge recompute.
func NewAccountsChangedEvent() PushEvent {
	return PushEvent{
		ID:        uuid.NewString(),
		Type:      EventAccountsChanged,
		Timestamp: time.Now().Unix(),
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e PushEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParsePushEvent parses a PushEvent from Redis stream message values.
func ParsePushEvent(values map[string]interface{}) (PushEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return PushEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event PushEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return PushEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
