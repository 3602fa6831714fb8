package transport

import (
	"time"

	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// CreateWorkItemRequest is the request body for registering a work item
type CreateWorkItemRequest struct {
	Kind              domain.WorkItemKind `json:"kind" validate:"required,oneof=booking service_request"`
	CenterID          uuid.UUID           `json:"centerId" validate:"required"`
	ScheduledStartUTC time.Time           `json:"scheduledStartUtc" validate:"required"`
	ScheduledEndUTC   time.Time           `json:"scheduledEndUtc" validate:"required,gtfield=ScheduledStartUTC"`
	CustomerRef       string              `json:"customerRef" validate:"max=200"`
	VehicleRef        string              `json:"vehicleRef" validate:"max=200"`
}

// UpdateStatusRequest is the request body for a work item transition
type UpdateStatusRequest struct {
	Status         domain.BookingStatus  `json:"status" validate:"required"`
	ExpectedStatus *domain.BookingStatus `json:"expectedStatus,omitempty"`
}

// ListRequest is the query parameters for listing a center's day
type ListRequest struct {
	CenterID string `form:"centerId" validate:"required,uuid"`
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
}
