package transport

import (
	"time"

	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// AddTicketRequest is the request body for appending a work item to a day's queue
type AddTicketRequest struct {
	WorkItemID        uuid.UUID  `json:"workItemId" validate:"required"`
	EstimatedStartUTC *time.Time `json:"estimatedStartUtc,omitempty"`
}

// ReorderRequest is the request body for replacing a queue's ordering.
// ExpectedVersion is the version returned by the last read of the queue.
type ReorderRequest struct {
	ExpectedVersion *int64      `json:"expectedVersion" validate:"required,min=0"`
	OrderedIDs      []uuid.UUID `json:"orderedIds"`
}

// UpdateETARequest is the request body for setting or clearing a ticket's ETA
type UpdateETARequest struct {
	EstimatedStartUTC *time.Time `json:"estimatedStartUtc"`
}

// ConvertRequest is the request body for promoting a ticket to an assignment
type ConvertRequest struct {
	TechnicianID *uuid.UUID `json:"technicianId,omitempty"`
}

// AddTicketResponse is the response for an appended ticket
type AddTicketResponse struct {
	Ticket domain.QueueTicket `json:"ticket"`
	Queue  domain.Queue       `json:"queue"`
}
