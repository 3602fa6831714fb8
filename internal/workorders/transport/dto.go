package transport

import (
	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// CreateWorkOrderRequest is the request body for opening a work order from a
// finalized intake. EstimatedCost is stored as given.
type CreateWorkOrderRequest struct {
	IntakeID      uuid.UUID `json:"intakeId" validate:"required"`
	EstimatedCost *string   `json:"estimatedCost,omitempty" validate:"omitempty,max=64"`
	PartsRequired *string   `json:"partsRequired,omitempty" validate:"omitempty,max=4000"`
	Tasks         []string  `json:"tasks" validate:"max=100,dive,max=500"`
}

// ToDomain converts the request to the domain input.
func (r CreateWorkOrderRequest) ToDomain() domain.NewWorkOrder {
	return domain.NewWorkOrder{
		IntakeID:      r.IntakeID,
		EstimatedCost: r.EstimatedCost,
		PartsRequired: r.PartsRequired,
		TaskTitles:    r.Tasks,
	}
}

// TransitionRequest is the request body for moving a work order
type TransitionRequest struct {
	Status domain.WorkOrderStatus `json:"status" validate:"required,oneof=Draft AwaitingApproval Approved InProgress Paused WaitingParts QA Revised Rejected Completed"`
	Notes  *string                `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateTaskRequest is the request body for ticking a task
type UpdateTaskRequest struct {
	Done *bool `json:"done" validate:"required"`
}
