// Package workitems provides the work items domain module.
package workitems

import (
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/workitems/handler"
	"workshop_backend/internal/workitems/service"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"
)

// Module represents the work items domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new work items module over the given store
func NewModule(store service.Store, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "workitems"
}

// RegisterRoutes registers the module's routes under /api/v1/work-items
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/work-items"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
