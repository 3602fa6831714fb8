// Package assignments provides the assignments domain module.
package assignments

import (
	"workshop_backend/internal/assignments/handler"
	"workshop_backend/internal/assignments/service"
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"
)

// Module represents the assignments domain module
type Module struct {
	handler *handler.Handler
	Service *service.Orchestrator
}

// NewModule creates a new assignments module over the given store
func NewModule(store service.Store, bus events.Bus, val *validator.Validator, log *logger.Logger, opts ...service.Option) *Module {
	svc := service.New(store, bus, log, opts...)
	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "assignments"
}

// RegisterRoutes registers the module's routes under /api/v1/assignments
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/assignments"))
	m.handler.RegisterTechnicianRoutes(ctx.Protected.Group("/technicians"))
	m.handler.RegisterWorkItemRoutes(ctx.Protected.Group("/work-items"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
