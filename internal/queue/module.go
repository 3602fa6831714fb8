// Package queue provides the daily queue domain module.
package queue

import (
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/queue/handler"
	"workshop_backend/internal/queue/service"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"
)

// Module represents the queue domain module
type Module struct {
	handler     *handler.Handler
	Coordinator *service.Coordinator
}

// NewModule creates a new queue module. Conversions go through assigner so
// every new assignment passes the conflict check.
func NewModule(store service.Store, assigner service.Assigner, workItems service.WorkItemReader, bus events.Bus, val *validator.Validator, log *logger.Logger, opts ...service.Option) *Module {
	coord := service.New(store, assigner, workItems, bus, log, opts...)
	return &Module{
		handler:     handler.New(coord, val),
		Coordinator: coord,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "queue"
}

// RegisterRoutes registers the module's routes under /api/v1/queues and
// /api/v1/queue-tickets
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterQueueRoutes(ctx.Protected.Group("/queues"))
	m.handler.RegisterTicketRoutes(ctx.Protected.Group("/queue-tickets"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
