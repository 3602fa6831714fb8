// Package sse pushes domain events to connected clients over Server-Sent
// Events so views can refresh without polling.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"workshop_backend/internal/events"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/logger"

	ginsse "github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 15 * time.Second
)

// Message is the payload of one pushed event.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	CenterID   *uuid.UUID `json:"centerId,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
	Data       any        `json:"data"`
}

// client is one open stream. A nil center receives every event.
type client struct {
	center *uuid.UUID
	events chan Message
}

// Service fans bus events out to open streams.
type Service struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *logger.Logger
	closed  bool
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.events)
	}
}

// Handle implements events.Handler. Center scoped events reach the streams
// of that center and unscoped streams; other events reach every stream.
func (s *Service) Handle(_ context.Context, event events.Event) error {
	msg := Message{ID: event.EventID(), Type: event.EventName(), OccurredAt: event.OccurredAt(), Data: event}
	if scoped, ok := event.(events.CenterScoped); ok {
		center := scoped.Center()
		msg.CenterID = &center
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.center != nil && msg.CenterID != nil && *c.center != *msg.CenterID {
			continue
		}
		select {
		case c.events <- msg:
		default:
			s.log.Warn("sse buffer full, dropping event", "event", msg.Type)
		}
	}
	return nil
}

// Clients reports the number of open streams.
func (s *Service) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler serves GET /api/v1/events/stream?centerId=. A token scoped to a
// center only ever sees that center.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		center, ok := streamCenter(c)
		if !ok {
			return
		}

		cl := &client{center: center, events: make(chan Message, clientBuffer)}
		if !s.addClient(cl) {
			httpkit.HandleError(c, apperr.Transient("event stream is shutting down", nil))
			return
		}
		defer s.removeClient(cl)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		c.SSEvent("connected", gin.H{"centerId": center})
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case msg, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					s.log.Warn("failed to encode sse event", "event", msg.Type, "error", err)
					continue
				}
				c.Render(-1, ginsse.Event{Id: msg.ID.String(), Event: msg.Type, Data: string(data)})
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		close(c.events)
	}
	s.clients = make(map[*client]struct{})
	s.closed = true
}

func streamCenter(c *gin.Context) (*uuid.UUID, bool) {
	if scoped := httpkit.GetIdentity(c).CenterID(); scoped != nil {
		return scoped, true
	}
	raw := c.Query("centerId")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid center id", apperr.FieldError{Path: "centerId", Message: "must be a UUID"}))
		return nil, false
	}
	return &id, true
}
