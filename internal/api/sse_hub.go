package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"investorradar/internal"
)

// Stream topics clients can subscribe to.
const (
	TopicJobs = "jobs"
	TopicSync = "sync"
	TopicFeed = "feed"
)

// Event is one message on the live stream
type Event struct {
	Topic     string      `json:"topic"`
	Name      string      `json:"name"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type streamClient struct {
	topic  string
	events chan Event
}

// Hub fans events out to connected SSE clients, keyed by topic. It runs
// for the life of the process; clients disconnect through their own
// request contexts.
type Hub struct {
	clients    map[string]map[chan Event]bool
	clientsMu  sync.RWMutex
	register   chan streamClient
	unregister chan streamClient
	broadcast  chan Event
	log        *internal.Logger
}

// NewHub creates the hub and starts its dispatch loop.
func NewHub(logger *internal.Logger) *Hub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	hub := &Hub{
		clients:    make(map[string]map[chan Event]bool),
		register:   make(chan streamClient, 10),
		unregister: make(chan streamClient, 10),
		broadcast:  make(chan Event, 100),
		log:        logger.Named("sse"),
	}
	go hub.run()
	return hub
}

func validTopic(topic string) bool {
	return topic == TopicJobs || topic == TopicSync || topic == TopicFeed
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[chan Event]bool)
			}
			h.clients[client.topic][client.events] = true
			h.log.Debug("client joined topic=%s listeners=%d", client.topic, len(h.clients[client.topic]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if listeners, ok := h.clients[client.topic]; ok {
				delete(listeners, client.events)
				close(client.events)
				if len(listeners) == 0 {
					delete(h.clients, client.topic)
				}
				h.log.Debug("client left topic=%s listeners=%d", client.topic, len(listeners))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for ch := range h.clients[event.Topic] {
				select {
				case ch <- event:
				default:
					// Slow client; drop rather than stall the loop.
					h.log.Debug("listener full on topic=%s, dropping %s", event.Topic, event.Name)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast queues an event for every client on its topic. Events are
// dropped when the hub itself is saturated; the stream is advisory and
// must never block a workflow.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast queue full, dropping %s/%s", event.Topic, event.Name)
	}
}

// HandleStream is the SSE endpoint. Clients pick one topic per
// connection via the topic query parameter.
func (h *Hub) HandleStream(c *gin.Context) {
	topic := c.Query("topic")
	if !validTopic(topic) {
		c.JSON(400, gin.H{"error": "topic must be one of jobs, sync, feed"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	client := streamClient{topic: topic, events: make(chan Event, 16)}
	select {
	case h.register <- client:
	default:
		c.JSON(500, gin.H{"error": "stream hub unavailable"})
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		default:
		}
	}()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-client.events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("marshal stream event: %v", err)
				return true
			}
			c.SSEvent(event.Name, string(data))
			return true

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", `{"status":"alive"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// ListenerCount reports how many clients currently follow a topic.
func (h *Hub) ListenerCount(topic string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[topic])
}
