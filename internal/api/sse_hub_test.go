package api

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"investorradar/internal/testkit"
	"investorradar/ports"
)

func streamEngine(hub *Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/stream", hub.HandleStream)
	return engine
}

func TestStreamRejectsUnknownTopic(t *testing.T) {
	hub := NewHub(nil)
	engine := streamEngine(hub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream?topic=nope", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

type streamRead struct {
	lines []string
	err   error
}

func TestStreamDeliversBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(streamEngine(hub))
	defer srv.Close()

	got := make(chan streamRead, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/stream?topic=feed")
		if err != nil {
			got <- streamRead{err: err}
			return
		}
		defer resp.Body.Close()
		reader := bufio.NewReader(resp.Body)
		var lines []string
		for len(lines) < 2 {
			line, err := reader.ReadString('\n')
			if err != nil {
				got <- streamRead{err: err}
				return
			}
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		got <- streamRead{lines: lines}
	}()

	// The client registers before the stream loop starts.
	deadline := time.Now().Add(3 * time.Second)
	for hub.ListenerCount(TopicFeed) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(Event{
		Topic: TopicFeed,
		Name:  "content.published",
		Data:  map[string]string{"title": "Ports are heating up"},
	})

	select {
	case result := <-got:
		if result.err != nil {
			t.Fatalf("stream read: %v", result.err)
		}
		joined := strings.Join(result.lines, "\n")
		if !strings.Contains(joined, "event:content.published") {
			t.Fatalf("missing event line: %q", joined)
		}
		if !strings.Contains(joined, "Ports are heating up") {
			t.Fatalf("missing payload: %q", joined)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event arrived on the stream")
	}
}

func TestTopicForRoutingKeys(t *testing.T) {
	cases := map[string]string{
		ports.EventDatasetCreated: TopicSync,
		ports.EventDatasetUpdated: TopicSync,
		ports.EventSyncCompleted:  TopicSync,
		ports.EventSignalCreated:  TopicSync,
		"content.published":       TopicFeed,
	}
	for key, want := range cases {
		if got := topicFor(key); got != want {
			t.Errorf("topicFor(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestFanoutPublishesToAll(t *testing.T) {
	first := testkit.NewCapturingPublisher()
	second := testkit.NewCapturingPublisher()
	fanout := Fanout{first, second}

	if err := fanout.Publish(context.Background(), ports.EventDatasetCreated, "payload"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Fatalf("events %d/%d, want 1/1", len(first.Events()), len(second.Events()))
	}
}

func TestFanoutContinuesAfterFailure(t *testing.T) {
	first := testkit.NewCapturingPublisher()
	second := testkit.NewCapturingPublisher()
	first.FailNext = errors.New("broker down")
	fanout := Fanout{first, second}

	err := fanout.Publish(context.Background(), ports.EventSyncCompleted, "payload")
	if err == nil || err.Error() != "broker down" {
		t.Fatalf("expected first error back, got %v", err)
	}
	if len(second.Events()) != 1 {
		t.Fatal("second publisher skipped after first failed")
	}
}

func TestEventBridgeNilSafe(t *testing.T) {
	var bridge *EventBridge
	if err := bridge.Publish(context.Background(), ports.EventDatasetCreated, nil); err != nil {
		t.Fatalf("nil bridge publish: %v", err)
	}
}
