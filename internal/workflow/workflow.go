// Package workflow declares the legal status transitions of every stateful
// entity. The same tables gate changes in the services and in the stores.
package workflow

import (
	"slices"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
)

// Entity names a state machine.
type Entity string

const (
	Booking    Entity = "booking"
	Assignment Entity = "assignment"
	Intake     Entity = "service_intake"
	WorkOrder  Entity = "work_order"
)

// Table maps each status to the statuses it may move to. Terminal statuses
// map to an empty list.
type Table map[string][]string

var tables = map[Entity]Table{
	Booking: build(map[domain.BookingStatus][]domain.BookingStatus{
		domain.BookingPending:    {domain.BookingAssigned, domain.BookingCancelled},
		domain.BookingAssigned:   {domain.BookingInQueue, domain.BookingReassigned, domain.BookingCancelled},
		domain.BookingReassigned: {domain.BookingAssigned, domain.BookingCancelled},
		domain.BookingInQueue:    {domain.BookingActive, domain.BookingCancelled},
		domain.BookingActive:     {domain.BookingConfirmed, domain.BookingCancelled},
		domain.BookingConfirmed:  {domain.BookingInProgress, domain.BookingCancelled},
		domain.BookingInProgress: {domain.BookingCompleted, domain.BookingCancelled},
		domain.BookingCompleted:  nil,
		domain.BookingCancelled:  nil,
	}),
	Assignment: build(map[domain.AssignmentStatus][]domain.AssignmentStatus{
		domain.AssignmentPending:   {domain.AssignmentAssigned, domain.AssignmentCancelled},
		domain.AssignmentAssigned:  {domain.AssignmentActive, domain.AssignmentCancelled},
		domain.AssignmentActive:    {domain.AssignmentCompleted, domain.AssignmentCancelled},
		domain.AssignmentCompleted: nil,
		domain.AssignmentCancelled: nil,
	}),
	Intake: build(map[domain.IntakeStatus][]domain.IntakeStatus{
		domain.IntakeCheckedIn:  {domain.IntakeInspecting, domain.IntakeCancelled},
		domain.IntakeInspecting: {domain.IntakeVerified, domain.IntakeCancelled},
		domain.IntakeVerified:   {domain.IntakeFinalized, domain.IntakeInspecting, domain.IntakeCancelled},
		domain.IntakeFinalized:  nil,
		domain.IntakeCancelled:  nil,
	}),
	WorkOrder: build(map[domain.WorkOrderStatus][]domain.WorkOrderStatus{
		domain.WorkOrderDraft:            {domain.WorkOrderAwaitingApproval},
		domain.WorkOrderAwaitingApproval: {domain.WorkOrderApproved, domain.WorkOrderRejected},
		domain.WorkOrderRejected:         {domain.WorkOrderRevised},
		domain.WorkOrderRevised:          {domain.WorkOrderAwaitingApproval},
		domain.WorkOrderApproved:         {domain.WorkOrderInProgress},
		domain.WorkOrderInProgress:       {domain.WorkOrderPaused, domain.WorkOrderWaitingParts, domain.WorkOrderQA, domain.WorkOrderCompleted},
		domain.WorkOrderPaused:           {domain.WorkOrderInProgress},
		domain.WorkOrderWaitingParts:     {domain.WorkOrderInProgress},
		domain.WorkOrderQA:               {domain.WorkOrderCompleted},
		domain.WorkOrderCompleted:        nil,
	}),
}

func build[S ~string](in map[S][]S) Table {
	out := make(Table, len(in))
	for from, targets := range in {
		list := make([]string, 0, len(targets))
		for _, to := range targets {
			list = append(list, string(to))
		}
		out[string(from)] = list
	}
	return out
}

// Entities lists every known state machine.
func Entities() []Entity {
	return []Entity{Booking, Assignment, Intake, WorkOrder}
}

// Lookup returns a copy of the transition table of entity.
func Lookup(entity Entity) (Table, bool) {
	table, ok := tables[entity]
	if !ok {
		return nil, false
	}
	out := make(Table, len(table))
	for from, targets := range table {
		out[from] = slices.Clone(targets)
	}
	return out, true
}

// Statuses lists every status of entity in sorted order.
func Statuses(entity Entity) []string {
	table := tables[entity]
	out := make([]string, 0, len(table))
	for status := range table {
		out = append(out, status)
	}
	slices.Sort(out)
	return out
}

// Known reports whether status is a status of entity.
func Known[S ~string](entity Entity, status S) bool {
	_, ok := tables[entity][string(status)]
	return ok
}

// CanTransition reports whether from may move to to. Self-transitions are
// never legal since no table lists them.
func CanTransition[S ~string](entity Entity, from, to S) bool {
	return slices.Contains(tables[entity][string(from)], string(to))
}

// Transition validates the move and returns the new status, or an
// invalid_transition error listing the legal targets.
func Transition[S ~string](entity Entity, from, to S) (S, error) {
	if !CanTransition(entity, from, to) {
		return from, apperr.InvalidTransition(string(entity), string(from), string(to), allowedStrings(entity, string(from)))
	}
	return to, nil
}

// Allowed lists the statuses from may move to.
func Allowed[S ~string](entity Entity, from S) []S {
	targets := tables[entity][string(from)]
	out := make([]S, 0, len(targets))
	for _, to := range targets {
		out = append(out, S(to))
	}
	return out
}

// IsTerminal reports whether status has no outgoing transitions.
func IsTerminal[S ~string](entity Entity, status S) bool {
	targets, ok := tables[entity][string(status)]
	return ok && len(targets) == 0
}

func allowedStrings(entity Entity, from string) []string {
	return slices.Clone(tables[entity][from])
}
