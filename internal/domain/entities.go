package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkItemKind distinguishes the concrete kind behind a work item.
type WorkItemKind string

const (
	KindBooking        WorkItemKind = "booking"
	KindServiceRequest WorkItemKind = "service_request"
)

// WorkItem is a booking or a service request awaiting or undergoing service.
type WorkItem struct {
	ID              uuid.UUID     `json:"id"`
	Kind            WorkItemKind  `json:"kind"`
	CenterID        uuid.UUID     `json:"centerId"`
	ScheduledWindow Window        `json:"scheduledWindow"`
	Status          BookingStatus `json:"status"`
	CustomerRef     string        `json:"customerRef"`
	VehicleRef      string        `json:"vehicleRef"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// NewWorkItem holds the fields needed to register a work item.
type NewWorkItem struct {
	Kind            WorkItemKind
	CenterID        uuid.UUID
	ScheduledWindow Window
	CustomerRef     string
	VehicleRef      string
}

// Assignment binds a technician to a planned window, usually for a work item.
type Assignment struct {
	ID            uuid.UUID        `json:"id"`
	WorkItemID    *uuid.UUID       `json:"workItemId,omitempty"`
	TechnicianID  uuid.UUID        `json:"technicianId"`
	CenterID      uuid.UUID        `json:"centerId"`
	PlannedWindow Window           `json:"plannedWindow"`
	Status        AssignmentStatus `json:"status"`
	QueueNo       *int             `json:"queueNo,omitempty"`
	Note          *string          `json:"note,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// NewAssignment holds the fields needed to create an assignment.
type NewAssignment struct {
	WorkItemID    *uuid.UUID
	TechnicianID  uuid.UUID
	CenterID      uuid.UUID
	PlannedWindow Window
	Note          *string
}

// CancelResult reports a cancelled assignment and whether its work item still
// has other blocking assignments.
type CancelResult struct {
	Assignment           Assignment `json:"assignment"`
	HasActiveAssignments bool       `json:"hasActiveAssignments"`
}

// ScheduleWindow is one slot of a technician's work schedule. Exactly one of
// Weekday and Date is set. A Closed date-specific entry marks a day off.
type ScheduleWindow struct {
	ID        uuid.UUID     `json:"id"`
	CenterID  uuid.UUID     `json:"centerId"`
	Weekday   *time.Weekday `json:"weekday,omitempty"`
	Date      *time.Time    `json:"date,omitempty"`
	StartTime string        `json:"startTime,omitempty"`
	EndTime   string        `json:"endTime,omitempty"`
	Timezone  string        `json:"timezone"`
	Closed    bool          `json:"closed,omitempty"`
}

// Technician is a member of the roster together with their schedule.
type Technician struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	IsActive    bool             `json:"isActive"`
	Specialties []string         `json:"specialties"`
	Schedule    []ScheduleWindow `json:"schedule"`
}

// QueueTicket is one entry in a center's daily queue. Position is zero once
// the ticket is marked as a no-show.
type QueueTicket struct {
	ID             uuid.UUID  `json:"id"`
	CenterID       uuid.UUID  `json:"centerId"`
	Date           time.Time  `json:"date"`
	Position       int        `json:"position"`
	WorkItemID     uuid.UUID  `json:"workItemId"`
	EstimatedStart *time.Time `json:"estimatedStartUtc,omitempty"`
	NoShow         bool       `json:"noShow"`
	AssignmentID   *uuid.UUID `json:"assignmentId,omitempty"`
	OverdueAt      *time.Time `json:"overdueAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Ranked reports whether the ticket takes part in the dense ordering.
func (t QueueTicket) Ranked() bool {
	return !t.NoShow
}

// NewQueueTicket holds the fields needed to append a ticket.
type NewQueueTicket struct {
	CenterID       uuid.UUID
	Date           time.Time
	WorkItemID     uuid.UUID
	EstimatedStart *time.Time
}

// Queue is the ordered ticket list of one center on one day. Ranked tickets
// come first in position order, followed by no-shows.
type Queue struct {
	CenterID uuid.UUID     `json:"centerId"`
	Date     time.Time     `json:"date"`
	Version  int64         `json:"version"`
	Tickets  []QueueTicket `json:"tickets"`
}

// ChecklistItemType is the value type a checklist item expects.
type ChecklistItemType string

const (
	ItemBool   ChecklistItemType = "Bool"
	ItemNumber ChecklistItemType = "Number"
	ItemText   ChecklistItemType = "Text"
)

// Severity grades a checklist finding.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ChecklistItem is an entry of the inspection catalog.
type ChecklistItem struct {
	ID         uuid.UUID         `json:"id"`
	Category   string            `json:"category"`
	Label      string            `json:"label"`
	Type       ChecklistItemType `json:"type"`
	IsRequired bool              `json:"isRequired"`
	IsActive   bool              `json:"isActive"`
	SortOrder  int               `json:"sortOrder"`
}

// ChecklistResponse is the recorded answer to one item of one intake.
type ChecklistResponse struct {
	IntakeID    uuid.UUID `json:"intakeId"`
	ItemID      uuid.UUID `json:"checklistItemId"`
	BoolValue   *bool     `json:"boolValue,omitempty"`
	NumberValue *float64  `json:"numberValue,omitempty"`
	TextValue   *string   `json:"textValue,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Note        *string   `json:"note,omitempty"`
	PhotoURL    *string   `json:"photoUrl,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VehicleSnapshot captures the vehicle and customer as found at check-in.
type VehicleSnapshot struct {
	Plate         string `json:"plate"`
	VIN           string `json:"vin"`
	Mileage       *int   `json:"mileage,omitempty"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
}

// ServiceIntake records a vehicle's arrival and inspection.
type ServiceIntake struct {
	ID           uuid.UUID       `json:"id"`
	BookingID    uuid.UUID       `json:"bookingId"`
	Status       IntakeStatus    `json:"status"`
	Snapshot     VehicleSnapshot `json:"snapshot"`
	ArrivalNotes *string         `json:"arrivalNotes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewIntake holds the fields needed to check a vehicle in.
type NewIntake struct {
	BookingID    uuid.UUID
	Snapshot     VehicleSnapshot
	ArrivalNotes *string
}

// Task is one line of work on a work order.
type Task struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Done  bool      `json:"done"`
}

// WorkOrder is the priced job spawned from a finalized intake. EstimatedCost
// is carried verbatim and never computed.
type WorkOrder struct {
	ID            uuid.UUID       `json:"id"`
	IntakeID      uuid.UUID       `json:"intakeId"`
	Status        WorkOrderStatus `json:"status"`
	EstimatedCost *string         `json:"estimatedCost,omitempty"`
	PartsRequired *string         `json:"partsRequired,omitempty"`
	ApprovalNotes *string         `json:"approvalNotes,omitempty"`
	Tasks         []Task          `json:"tasks"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewWorkOrder holds the fields needed to open a work order.
type NewWorkOrder struct {
	IntakeID      uuid.UUID
	EstimatedCost *string
	PartsRequired *string
	TaskTitles    []string
}
