package api

import (
	"context"
	"strings"
	"time"

	"investorradar/internal/jobs"
	"investorradar/ports"
)

// JobListener bridges job runner updates onto the jobs stream topic.
// Every phase change and the final completion show up as one event.
func JobListener(hub *Hub) jobs.Listener {
	return func(job jobs.Job) {
		hub.Broadcast(Event{
			Topic:     TopicJobs,
			Name:      "job.update",
			Data:      job,
			Timestamp: time.Now().UTC(),
		})
	}
}

// EventBridge mirrors broker events onto the SSE hub so browser clients
// follow sync activity without a broker connection. It satisfies the
// publisher port and is fanned out next to the real broker publisher.
type EventBridge struct {
	hub *Hub
}

// NewEventBridge wraps a hub as an event publisher.
func NewEventBridge(hub *Hub) *EventBridge {
	return &EventBridge{hub: hub}
}

// topicFor maps a routing key onto a stream topic. Content events land
// on the feed topic, everything else on sync.
func topicFor(routingKey string) string {
	if strings.HasPrefix(routingKey, "content.") {
		return TopicFeed
	}
	return TopicSync
}

// Publish forwards the event to the hub. Never returns an error; a
// dropped stream event is not a publishing failure.
func (b *EventBridge) Publish(_ context.Context, routingKey string, payload any) error {
	if b == nil || b.hub == nil {
		return nil
	}
	b.hub.Broadcast(Event{
		Topic:     topicFor(routingKey),
		Name:      routingKey,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Close is a no-op; the hub outlives the bridge.
func (b *EventBridge) Close() error { return nil }

// Fanout publishes every event to each wrapped publisher. The first
// error is returned after all publishers have been tried.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, routingKey string, payload any) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, routingKey, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
