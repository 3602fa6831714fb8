// Package intake provides the vehicle check-in and inspection checklist module.
package intake

import (
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/intake/handler"
	"workshop_backend/internal/intake/service"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"
)

// Module represents the intake domain module
type Module struct {
	handler *handler.Handler
	Gate    *service.Gate
}

// NewModule creates a new intake module
func NewModule(store service.Store, bookings service.BookingReader, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	gate := service.New(store, bookings, bus, log)
	return &Module{
		handler: handler.New(gate, val),
		Gate:    gate,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "intake"
}

// RegisterRoutes registers the module's routes under /api/v1/intakes and
// /api/v1/checklist-items
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterIntakeRoutes(ctx.Protected.Group("/intakes"))
	m.handler.RegisterChecklistRoutes(ctx.Protected.Group("/checklist-items"))
}

var _ apphttp.Module = (*Module)(nil)
