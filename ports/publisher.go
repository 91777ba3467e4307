package ports

import "context"

// Event routing keys published on the radar exchange.
const (
	EventDatasetCreated = "dataset.created"
	EventDatasetUpdated = "dataset.updated"
	EventSyncCompleted  = "sync.completed"
	EventSignalCreated  = "signal.created"
)

// EventPublisher pushes domain events to the message broker.
// Implementations must tolerate a nil receiver so callers can publish
// unconditionally whether or not a broker is configured.
type EventPublisher interface {
	// Publish sends one event under the given routing key. The payload is
	// JSON-encoded by the implementation.
	Publish(ctx context.Context, routingKey string, payload any) error

	// Close releases the broker connection.
	Close() error
}
