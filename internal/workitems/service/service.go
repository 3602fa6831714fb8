// Package service reads work items and applies the booking status changes
// that callers may request directly.
package service

import (
	"context"
	"strings"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/phone"

	"github.com/google/uuid"
)

// Store persists work items. UpdateWorkItemStatus is a compare-and-set on
// the current status.
type Store interface {
	CreateWorkItem(ctx context.Context, in domain.NewWorkItem) (domain.WorkItem, error)
	GetWorkItem(ctx context.Context, id uuid.UUID) (domain.WorkItem, error)
	ListWorkItems(ctx context.Context, centerID uuid.UUID, from, to time.Time) ([]domain.WorkItem, error)
	UpdateWorkItemStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.WorkItem, error)
}

// Service handles work item reads and explicit transitions.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// New creates a work item service.
func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// Create registers a PENDING work item.
func (s *Service) Create(ctx context.Context, in domain.NewWorkItem) (domain.WorkItem, error) {
	var fields []apperr.FieldError
	if in.Kind != domain.KindBooking && in.Kind != domain.KindServiceRequest {
		fields = append(fields, apperr.FieldError{Path: "kind", Message: "must be one of: booking service_request"})
	}
	if in.CenterID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "centerId", Message: "is required"})
	}
	if !in.ScheduledWindow.Valid() {
		fields = append(fields, apperr.FieldError{Path: "scheduledWindow", Message: "end must be after start"})
	}
	if len(fields) > 0 {
		return domain.WorkItem{}, apperr.Validation("invalid work item", fields...)
	}
	in.ScheduledWindow = domain.Window{Start: in.ScheduledWindow.Start.UTC(), End: in.ScheduledWindow.End.UTC()}
	in.CustomerRef = phone.NormalizeE164(in.CustomerRef)
	in.VehicleRef = strings.TrimSpace(in.VehicleRef)
	return s.store.CreateWorkItem(ctx, in)
}

// Get loads one work item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.WorkItem, error) {
	return s.store.GetWorkItem(ctx, id)
}

// ListForDay lists a center's work items scheduled on date (UTC).
func (s *Service) ListForDay(ctx context.Context, centerID uuid.UUID, date time.Time) ([]domain.WorkItem, error) {
	from := domain.DateOf(date)
	return s.store.ListWorkItems(ctx, centerID, from, from.Add(24*time.Hour))
}

// Transition applies a caller-requested status change. expected, when set,
// is the status the caller last saw; otherwise the current status is read
// first. Statuses owned by assignment and queue mutations are rejected.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target domain.BookingStatus, expected *domain.BookingStatus) (domain.WorkItem, error) {
	if !workflow.ManualBookingTargets[target] {
		return domain.WorkItem{}, apperr.Validation("status is set by assignment and queue changes",
			apperr.FieldError{Path: "status", Message: "must be one of: ACTIVE CONFIRMED IN_PROGRESS COMPLETED CANCELLED"})
	}

	var from domain.BookingStatus
	if expected != nil {
		if !workflow.Known(workflow.Booking, *expected) {
			return domain.WorkItem{}, apperr.Validation("unknown status",
				apperr.FieldError{Path: "expectedStatus", Message: "is not a booking status"})
		}
		from = *expected
	} else {
		current, err := s.store.GetWorkItem(ctx, id)
		if err != nil {
			return domain.WorkItem{}, err
		}
		from = current.Status
	}

	if _, err := workflow.Transition(workflow.Booking, from, target); err != nil {
		return domain.WorkItem{}, err
	}

	updated, err := s.store.UpdateWorkItemStatus(ctx, id, from, target)
	if err != nil {
		return domain.WorkItem{}, err
	}

	s.bus.Publish(ctx, events.WorkItemStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		WorkItemID: updated.ID,
		CenterID:   updated.CenterID,
		From:       string(from),
		To:         string(updated.Status),
	})
	s.log.WithContext(ctx).Info("work item status changed", "workItemId", updated.ID, "from", from, "to", updated.Status)
	return updated, nil
}
