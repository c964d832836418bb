package eventbus

import (
	"context"
	"encoding/json"
	"time"
)

// EventConsumer handles events for specific routing keys.
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer handles,
	// e.g. ["dispatch.plan.completed", "dispatch.job.assigned"].
	EventTypes() []string

	// Handle processes a single event.
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is an event envelope received from the message bus.
// The JSON shape mirrors Envelope; RoutingKey is taken from the
// transport delivery rather than the payload.
type ConsumedEvent struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	RoutingKey string          `json:"-"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Consumer is a blocking event subscription against a message broker.
type Consumer interface {
	// Start begins consuming messages. It blocks until the context is
	// cancelled or the connection fails.
	Start(ctx context.Context) error

	// RegisterConsumer subscribes an event consumer to its routing keys.
	RegisterConsumer(consumer EventConsumer)

	// Close closes the consumer connection.
	Close() error
}
