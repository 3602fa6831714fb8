package domain

// BookingStatus is the lifecycle state of a work item. Bookings and service
// requests share it.
type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingAssigned   BookingStatus = "ASSIGNED"
	BookingInQueue    BookingStatus = "IN_QUEUE"
	BookingReassigned BookingStatus = "REASSIGNED"
	BookingActive     BookingStatus = "ACTIVE"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentCancelled AssignmentStatus = "CANCELLED"
)

// Blocking reports whether an assignment in this status occupies the
// technician's time.
func (s AssignmentStatus) Blocking() bool {
	switch s {
	case AssignmentPending, AssignmentAssigned, AssignmentActive:
		return true
	default:
		return false
	}
}

// IntakeStatus is the lifecycle state of a service intake.
type IntakeStatus string

const (
	IntakeCheckedIn  IntakeStatus = "Checked_In"
	IntakeInspecting IntakeStatus = "Inspecting"
	IntakeVerified   IntakeStatus = "Verified"
	IntakeFinalized  IntakeStatus = "Finalized"
	IntakeCancelled  IntakeStatus = "Cancelled"
)

// WorkOrderStatus is the lifecycle state of a work order.
type WorkOrderStatus string

const (
	WorkOrderDraft            WorkOrderStatus = "Draft"
	WorkOrderAwaitingApproval WorkOrderStatus = "AwaitingApproval"
	WorkOrderApproved         WorkOrderStatus = "Approved"
	WorkOrderInProgress       WorkOrderStatus = "InProgress"
	WorkOrderPaused           WorkOrderStatus = "Paused"
	WorkOrderWaitingParts     WorkOrderStatus = "WaitingParts"
	WorkOrderQA               WorkOrderStatus = "QA"
	WorkOrderRevised          WorkOrderStatus = "Revised"
	WorkOrderRejected         WorkOrderStatus = "Rejected"
	WorkOrderCompleted        WorkOrderStatus = "Completed"
)
