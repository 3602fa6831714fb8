package transport

import (
	"time"

	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// CreateAssignmentRequest is the request body for creating an assignment
type CreateAssignmentRequest struct {
	BookingID       uuid.UUID `json:"bookingId" validate:"required"`
	TechnicianID    uuid.UUID `json:"technicianId" validate:"required"`
	CenterID        uuid.UUID `json:"centerId" validate:"required"`
	PlannedStartUTC time.Time `json:"plannedStartUtc" validate:"required"`
	PlannedEndUTC   time.Time `json:"plannedEndUtc" validate:"required,gtfield=PlannedStartUTC"`
	Note            *string   `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// CreateBatchRequest is the request body for assigning several technicians
// to one work item
type CreateBatchRequest struct {
	BookingID       uuid.UUID   `json:"bookingId" validate:"required"`
	CenterID        uuid.UUID   `json:"centerId" validate:"required"`
	PlannedStartUTC time.Time   `json:"plannedStartUtc" validate:"required"`
	PlannedEndUTC   time.Time   `json:"plannedEndUtc" validate:"required,gtfield=PlannedStartUTC"`
	TechnicianIDs   []uuid.UUID `json:"technicianIds" validate:"required,min=1,max=20"`
}

// ReassignRequest is the request body for moving an assignment to another technician
type ReassignRequest struct {
	TechnicianID uuid.UUID `json:"technicianId" validate:"required"`
}

// UpdateStatusRequest is the request body for advancing an assignment
type UpdateStatusRequest struct {
	Status domain.AssignmentStatus `json:"status" validate:"required,oneof=ASSIGNED ACTIVE COMPLETED"`
}

// ListRangeRequest is the query parameters for listing a technician's assignments
type ListRangeRequest struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00" validate:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00" validate:"required,gtfield=From"`
}

// BatchItemResponse is the outcome for one technician of a batch create
type BatchItemResponse struct {
	TechnicianID uuid.UUID          `json:"technicianId"`
	Assignment   *domain.Assignment `json:"assignment,omitempty"`
	RiskFlagged  bool               `json:"riskFlagged"`
	Error        *ItemError         `json:"error,omitempty"`
}

// ItemError is the error of one batch entry, in the standard error shape.
type ItemError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// BatchResponse lists batch outcomes in request order
type BatchResponse struct {
	Results   []BatchItemResponse `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}
