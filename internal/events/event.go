// Package events defines the scheduling events: assignment, work item,
// queue, intake and work order changes. They are published on the
// in-process bus and fanned out to SSE subscribers by center.
package events

import (
	"time"

	"workshop_backend/platform/events"

	"github.com/google/uuid"
)

// The bus itself lives in platform/events; scheduling code only imports this
// package.
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// AllEvents subscribes a handler to every event. The SSE stream is its
// only subscriber.
const AllEvents = events.AllEvents

// CenterScoped is implemented by events that belong to one service center.
// The SSE stream uses it to route events to subscribers of that center.
type CenterScoped interface {
	Center() uuid.UUID
}

// =============================================================================
// Assignment Events
// =============================================================================

// AssignmentCreated is published after an assignment is stored.
type AssignmentCreated struct {
	BaseEvent
	AssignmentID uuid.UUID  `json:"assignmentId"`
	WorkItemID   *uuid.UUID `json:"workItemId,omitempty"`
	TechnicianID uuid.UUID  `json:"technicianId"`
	CenterID     uuid.UUID  `json:"centerId"`
	RiskFlagged  bool       `json:"riskFlagged"`
}

func (e AssignmentCreated) EventName() string { return "assignments.created" }
func (e AssignmentCreated) Center() uuid.UUID { return e.CenterID }

// AssignmentCancelled is published after an assignment is cancelled.
type AssignmentCancelled struct {
	BaseEvent
	AssignmentID         uuid.UUID  `json:"assignmentId"`
	WorkItemID           *uuid.UUID `json:"workItemId,omitempty"`
	CenterID             uuid.UUID  `json:"centerId"`
	HasActiveAssignments bool       `json:"hasActiveAssignments"`
}

func (e AssignmentCancelled) EventName() string { return "assignments.cancelled" }
func (e AssignmentCancelled) Center() uuid.UUID { return e.CenterID }

// AssignmentStatusChanged is published when an assignment advances.
type AssignmentStatusChanged struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	CenterID     uuid.UUID `json:"centerId"`
	From         string    `json:"from"`
	To           string    `json:"to"`
}

func (e AssignmentStatusChanged) EventName() string { return "assignments.status_changed" }
func (e AssignmentStatusChanged) Center() uuid.UUID { return e.CenterID }

// WorkItemReadyForAssignment is published when a reassignment leaves a work
// item without a technician.
type WorkItemReadyForAssignment struct {
	BaseEvent
	WorkItemID           uuid.UUID `json:"workItemId"`
	CenterID             uuid.UUID `json:"centerId"`
	PreviousAssignmentID uuid.UUID `json:"previousAssignmentId"`
	Reason               string    `json:"reason"`
}

func (e WorkItemReadyForAssignment) EventName() string { return "workitems.ready_for_assignment" }
func (e WorkItemReadyForAssignment) Center() uuid.UUID { return e.CenterID }

// WorkItemStatusChanged is published when a work item status is set explicitly.
type WorkItemStatusChanged struct {
	BaseEvent
	WorkItemID uuid.UUID `json:"workItemId"`
	CenterID   uuid.UUID `json:"centerId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
}

func (e WorkItemStatusChanged) EventName() string { return "workitems.status_changed" }
func (e WorkItemStatusChanged) Center() uuid.UUID { return e.CenterID }

// MutationFailed is published when a fire-and-forget mutation fails after
// its initiator has gone away.
type MutationFailed struct {
	BaseEvent
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e MutationFailed) EventName() string { return "mutations.failed" }

// =============================================================================
// Queue Events
// =============================================================================

// QueueChanged is published after any change to a center's daily queue.
type QueueChanged struct {
	BaseEvent
	CenterID uuid.UUID `json:"centerId"`
	Date     string    `json:"date"`
	Version  int64     `json:"version"`
	Reason   string    `json:"reason"`
}

func (e QueueChanged) EventName() string { return "queues.changed" }
func (e QueueChanged) Center() uuid.UUID { return e.CenterID }

// QueueTicketConverted is published when a ticket is linked to an assignment.
type QueueTicketConverted struct {
	BaseEvent
	TicketID     uuid.UUID `json:"ticketId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	CenterID     uuid.UUID `json:"centerId"`
}

func (e QueueTicketConverted) EventName() string { return "queues.ticket_converted" }
func (e QueueTicketConverted) Center() uuid.UUID { return e.CenterID }

// QueueTicketOverdue is published when a ticket passes its ETA plus grace
// without being converted.
type QueueTicketOverdue struct {
	BaseEvent
	TicketID     uuid.UUID `json:"ticketId"`
	CenterID     uuid.UUID `json:"centerId"`
	EstimatedUTC time.Time `json:"estimatedStartUtc"`
}

func (e QueueTicketOverdue) EventName() string { return "queues.ticket_overdue" }
func (e QueueTicketOverdue) Center() uuid.UUID { return e.CenterID }

// =============================================================================
// Intake & Work Order Events
// =============================================================================

// IntakeStatusChanged is published when an intake moves through its workflow.
type IntakeStatusChanged struct {
	BaseEvent
	IntakeID  uuid.UUID `json:"intakeId"`
	BookingID uuid.UUID `json:"bookingId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

func (e IntakeStatusChanged) EventName() string { return "intakes.status_changed" }

// ChecklistAutosaveFailed is published when a draft flush fails. The draft
// stays buffered and is retried on the next tick.
type ChecklistAutosaveFailed struct {
	BaseEvent
	IntakeID     uuid.UUID `json:"intakeId"`
	PendingItems int       `json:"pendingItems"`
	Error        string    `json:"error"`
}

func (e ChecklistAutosaveFailed) EventName() string { return "intakes.autosave_failed" }

// WorkOrderStatusChanged is published when a work order moves through its workflow.
type WorkOrderStatusChanged struct {
	BaseEvent
	WorkOrderID uuid.UUID `json:"workOrderId"`
	IntakeID    uuid.UUID `json:"intakeId"`
	From        string    `json:"from"`
	To          string    `json:"to"`
}

func (e WorkOrderStatusChanged) EventName() string { return "workorders.status_changed" }
