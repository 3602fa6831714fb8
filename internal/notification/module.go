// Package notification pushes domain events to connected clients. It
// subscribes to every event on the bus and serves them as an SSE stream.
package notification

import (
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/notification/sse"
	"workshop_backend/platform/logger"
)

// Module represents the notification module
type Module struct {
	sse *sse.Service
}

// New creates the notification module
func New(log *logger.Logger) *Module {
	return &Module{sse: sse.New(log)}
}

// RegisterHandlers subscribes the stream to every event on the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AllEvents, m.sse)
}

// SSE returns the stream service.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// Close ends every open stream.
func (m *Module) Close() {
	m.sse.Close()
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes registers GET /api/v1/events/stream
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events/stream", m.sse.Handler())
}

var _ apphttp.Module = (*Module)(nil)
