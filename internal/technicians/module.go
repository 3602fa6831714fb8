// Package technicians provides the roster and technician matching module.
package technicians

import (
	"context"

	"workshop_backend/internal/availability"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/technicians/handler"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"

	"github.com/google/uuid"
)

// Store is the roster side of the module.
type Store interface {
	availability.Roster
	handler.TechnicianReader
	ListCenterIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Module represents the technicians domain module
type Module struct {
	handler *handler.Handler
	store   Store
	Matcher *availability.Service
}

// NewModule creates a new technicians module
func NewModule(store Store, assignments availability.AssignmentReader, workItems availability.WorkItemReader, val *validator.Validator, log *logger.Logger, opts ...availability.Option) *Module {
	matcher := availability.New(store, assignments, workItems, log, opts...)
	return &Module{
		handler: handler.New(matcher, store, val),
		store:   store,
		Matcher: matcher,
	}
}

// RefreshRoster re-reads the roster of every scheduled center into the cache.
func (m *Module) RefreshRoster(ctx context.Context) error {
	centers, err := m.store.ListCenterIDs(ctx)
	if err != nil {
		return err
	}
	return m.Matcher.RefreshRoster(ctx, centers)
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "technicians"
}

// RegisterRoutes registers the module's routes under /api/v1
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/technicians"))
	m.handler.RegisterMatchRoutes(ctx.Protected.Group("/work-items"), ctx.Protected.Group("/availability"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
