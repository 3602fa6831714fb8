// Package workorders provides the work order domain module.
package workorders

import (
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/workorders/handler"
	"workshop_backend/internal/workorders/service"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"
)

// Module represents the work order domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new work order module
func NewModule(store service.Store, intakes service.IntakeReader, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, intakes, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "workorders"
}

// RegisterRoutes registers the module's routes under /api/v1/work-orders
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/work-orders"))
}

var _ apphttp.Module = (*Module)(nil)
