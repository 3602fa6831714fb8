package notification

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"workshop_backend/internal/events"
	"workshop_backend/internal/notification/sse"
	"workshop_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sseEvent struct {
	id   string
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "id:"):
			ev.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestStreamRoutesCenterScopedEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := events.NewInMemoryBus(logger.Nop())
	module := New(logger.Nop())
	module.RegisterHandlers(bus)

	engine := gin.New()
	engine.GET("/events/stream", module.SSE().Handler())
	srv := httptest.NewServer(engine)
	defer srv.Close()

	watched, other := uuid.New(), uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream?centerId="+watched.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if ev := readEvent(t, reader); ev.name != "connected" {
		t.Fatalf("expected connected event, got %+v", ev)
	}

	_ = bus.PublishSync(ctx, events.QueueChanged{BaseEvent: events.NewBaseEvent(), CenterID: other, Version: 1, Reason: "reordered"})
	_ = bus.PublishSync(ctx, events.QueueChanged{BaseEvent: events.NewBaseEvent(), CenterID: watched, Version: 7, Reason: "reordered"})
	_ = bus.PublishSync(ctx, events.MutationFailed{BaseEvent: events.NewBaseEvent(), Operation: "assignments.cancel", Code: "transient"})

	ev := readEvent(t, reader)
	if ev.name != "queues.changed" {
		t.Fatalf("expected queues.changed, got %+v", ev)
	}
	var msg sse.Message
	if err := json.Unmarshal([]byte(ev.data), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.CenterID == nil || *msg.CenterID != watched {
		t.Fatalf("expected only the watched center, got %+v", msg)
	}
	if ev.id == "" || ev.id != msg.ID.String() {
		t.Fatalf("expected the stream id to match the event id, got %q and %s", ev.id, msg.ID)
	}

	if ev := readEvent(t, reader); ev.name != "mutations.failed" {
		t.Fatalf("expected unscoped events to reach every stream, got %+v", ev)
	}
}

func TestStreamRejectsInvalidCenter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/events/stream", New(logger.Nop()).SSE().Handler())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/stream?centerId=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
