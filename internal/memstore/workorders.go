package memstore

import (
	"context"
	"slices"
	"strconv"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// CreateWorkOrder opens a Draft work order for a Finalized intake. An intake
// spawns at most one work order.
func (s *Store) CreateWorkOrder(_ context.Context, in domain.NewWorkOrder) (domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intake, ok := s.intakes[in.IntakeID]
	if !ok {
		return domain.WorkOrder{}, apperr.NotFound("intake not found")
	}
	if intake.Status != domain.IntakeFinalized {
		return domain.WorkOrder{}, apperr.InvalidTransition(string(workflow.Intake), string(intake.Status), string(domain.IntakeFinalized), nil)
	}
	for _, wo := range s.workOrders {
		if wo.IntakeID == in.IntakeID {
			return domain.WorkOrder{}, apperr.Conflict("intake already has a work order").
				WithDetails(map[string]string{"workOrderId": wo.ID.String()})
		}
	}

	now := s.timestamp()
	wo := domain.WorkOrder{
		ID:            uuid.New(),
		IntakeID:      in.IntakeID,
		Status:        domain.WorkOrderDraft,
		EstimatedCost: in.EstimatedCost,
		PartsRequired: in.PartsRequired,
		Tasks:         make([]domain.Task, 0, len(in.TaskTitles)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, title := range in.TaskTitles {
		wo.Tasks = append(wo.Tasks, domain.Task{ID: uuid.New(), Title: title})
	}
	s.workOrders[wo.ID] = wo
	return cloneWorkOrder(wo), nil
}

// GetWorkOrder loads one work order with its tasks.
func (s *Store) GetWorkOrder(_ context.Context, id uuid.UUID) (domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wo, ok := s.workOrders[id]
	if !ok {
		return domain.WorkOrder{}, apperr.NotFound("work order not found")
	}
	return cloneWorkOrder(wo), nil
}

// UpdateWorkOrderStatus moves a work order from one status to another. Non-nil
// notes replace the approval notes.
func (s *Store) UpdateWorkOrderStatus(_ context.Context, id uuid.UUID, from, to domain.WorkOrderStatus, notes *string) (domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wo, ok := s.workOrders[id]
	if !ok {
		return domain.WorkOrder{}, apperr.NotFound("work order not found")
	}
	if wo.Status != from {
		return domain.WorkOrder{}, apperr.Conflict("work order status changed").
			WithDetails(map[string]string{"currentStatus": string(wo.Status)})
	}
	if _, err := workflow.Transition(workflow.WorkOrder, from, to); err != nil {
		return domain.WorkOrder{}, err
	}
	wo.Status = to
	if notes != nil {
		wo.ApprovalNotes = notes
	}
	wo.UpdatedAt = s.timestamp()
	s.workOrders[id] = wo
	return cloneWorkOrder(wo), nil
}

// SetTaskDone ticks or unticks one task of a work order.
func (s *Store) SetTaskDone(_ context.Context, workOrderID, taskID uuid.UUID, done bool) (domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wo, ok := s.workOrders[workOrderID]
	if !ok {
		return domain.WorkOrder{}, apperr.NotFound("work order not found")
	}
	wo = cloneWorkOrder(wo)
	idx := slices.IndexFunc(wo.Tasks, func(t domain.Task) bool { return t.ID == taskID })
	if idx < 0 {
		return domain.WorkOrder{}, apperr.NotFound("task not found")
	}
	wo.Tasks[idx].Done = done
	wo.UpdatedAt = s.timestamp()
	s.workOrders[workOrderID] = wo
	return cloneWorkOrder(wo), nil
}

func cloneWorkOrder(wo domain.WorkOrder) domain.WorkOrder {
	wo.Tasks = slices.Clone(wo.Tasks)
	if wo.Tasks == nil {
		wo.Tasks = []domain.Task{}
	}
	return wo
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
