// Package service drives work orders spawned from finalized intakes.
package service

import (
	"context"
	"strings"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Store persists work orders and their tasks.
type Store interface {
	CreateWorkOrder(ctx context.Context, in domain.NewWorkOrder) (domain.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id uuid.UUID) (domain.WorkOrder, error)
	UpdateWorkOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.WorkOrderStatus, notes *string) (domain.WorkOrder, error)
	SetTaskDone(ctx context.Context, workOrderID, taskID uuid.UUID, done bool) (domain.WorkOrder, error)
}

// IntakeReader loads the intake a work order is created from.
type IntakeReader interface {
	GetIntake(ctx context.Context, id uuid.UUID) (domain.ServiceIntake, error)
}

// Service owns work order state changes.
type Service struct {
	store   Store
	intakes IntakeReader
	bus     events.Bus
	log     *logger.Logger
}

// New creates a work order service.
func New(store Store, intakes IntakeReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, intakes: intakes, bus: bus, log: log}
}

// CreateFromIntake opens a Draft work order for a Finalized intake.
func (s *Service) CreateFromIntake(ctx context.Context, in domain.NewWorkOrder) (domain.WorkOrder, error) {
	if in.IntakeID == uuid.Nil {
		return domain.WorkOrder{}, apperr.Validation("intake is required",
			apperr.FieldError{Path: "intakeId", Message: "is required"})
	}
	titles := make([]string, 0, len(in.TaskTitles))
	for _, title := range in.TaskTitles {
		if t := strings.TrimSpace(title); t != "" {
			titles = append(titles, t)
		}
	}
	in.TaskTitles = titles

	intake, err := s.intakes.GetIntake(ctx, in.IntakeID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if intake.Status != domain.IntakeFinalized {
		return domain.WorkOrder{}, apperr.InvalidTransition(string(workflow.Intake), string(intake.Status), string(domain.IntakeFinalized), nil)
	}

	wo, err := s.store.CreateWorkOrder(ctx, in)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	s.publish(ctx, wo, "")
	s.log.WithContext(ctx).Info("work order created", "workOrderId", wo.ID, "intakeId", wo.IntakeID)
	return wo, nil
}

// Get loads one work order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.WorkOrder, error) {
	return s.store.GetWorkOrder(ctx, id)
}

// Transition moves a work order to target. Notes given with an approval or
// rejection are recorded on the order.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target domain.WorkOrderStatus, notes *string) (domain.WorkOrder, error) {
	current, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if _, err := workflow.Transition(workflow.WorkOrder, current.Status, target); err != nil {
		return domain.WorkOrder{}, err
	}
	notes = sanitize.TextPtr(notes)

	updated, err := s.store.UpdateWorkOrderStatus(ctx, id, current.Status, target, notes)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	s.publish(ctx, updated, current.Status)
	return updated, nil
}

// SetTaskDone ticks or unticks a task. Completed orders are read-only.
func (s *Service) SetTaskDone(ctx context.Context, workOrderID, taskID uuid.UUID, done bool) (domain.WorkOrder, error) {
	current, err := s.store.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if workflow.IsTerminal(workflow.WorkOrder, current.Status) {
		return domain.WorkOrder{}, apperr.Conflict("work order is " + string(current.Status))
	}
	return s.store.SetTaskDone(ctx, workOrderID, taskID, done)
}

func (s *Service) publish(ctx context.Context, wo domain.WorkOrder, from domain.WorkOrderStatus) {
	s.bus.Publish(ctx, events.WorkOrderStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		WorkOrderID: wo.ID,
		IntakeID:    wo.IntakeID,
		From:        string(from),
		To:          string(wo.Status),
	})
}
