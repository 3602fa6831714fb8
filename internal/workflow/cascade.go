package workflow

import (
	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
)

// The functions below decide the work item status change that accompanies an
// assignment or queue mutation. Stores apply the result in the same
// transaction as the mutation itself.

// OnAssignmentCreated returns the work item status after an assignment for it
// succeeds. Only the first success moves the item to ASSIGNED; later ones
// leave it untouched. Terminal work items cannot receive assignments.
func OnAssignmentCreated(current domain.BookingStatus) (domain.BookingStatus, bool, error) {
	switch current {
	case domain.BookingPending, domain.BookingReassigned:
		return domain.BookingAssigned, true, nil
	case domain.BookingCompleted, domain.BookingCancelled:
		return current, false, apperr.InvalidTransition(string(Booking), string(current), string(domain.BookingAssigned), nil)
	default:
		return current, false, nil
	}
}

// OnAssignmentsCleared returns the work item status once its last blocking
// assignment is cancelled. An ASSIGNED item becomes ready for reassignment;
// items further along are left alone.
func OnAssignmentsCleared(current domain.BookingStatus) (domain.BookingStatus, bool) {
	if current == domain.BookingAssigned {
		return domain.BookingReassigned, true
	}
	return current, false
}

// OnQueued returns the work item status after a ticket for it joins a queue.
func OnQueued(current domain.BookingStatus) (domain.BookingStatus, bool) {
	if current == domain.BookingAssigned {
		return domain.BookingInQueue, true
	}
	return current, false
}

// ManualBookingTargets are the work item statuses callers may request
// directly. The others are reached only through assignment and queue
// mutations.
var ManualBookingTargets = map[domain.BookingStatus]bool{
	domain.BookingActive:     true,
	domain.BookingConfirmed:  true,
	domain.BookingInProgress: true,
	domain.BookingCompleted:  true,
	domain.BookingCancelled:  true,
}
