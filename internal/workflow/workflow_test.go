package workflow

import (
	"testing"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
)

func TestTablesAreClosed(t *testing.T) {
	for _, entity := range Entities() {
		table, ok := Lookup(entity)
		if !ok {
			t.Fatalf("missing table for %s", entity)
		}
		for from, targets := range table {
			for _, to := range targets {
				if _, ok := table[to]; !ok {
					t.Errorf("%s: %s -> %s targets an undeclared status", entity, from, to)
				}
				if to == from {
					t.Errorf("%s: self-transition on %s", entity, from)
				}
			}
		}
	}
}

func TestEveryNonTerminalStatusReachesATerminal(t *testing.T) {
	for _, entity := range Entities() {
		table, _ := Lookup(entity)
		for start := range table {
			if !reachesTerminal(table, start) {
				t.Errorf("%s: %s cannot reach a terminal status", entity, start)
			}
		}
	}
}

func reachesTerminal(table Table, start string) bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(table[cur]) == 0 {
			return true
		}
		for _, next := range table[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func TestBookingTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.BookingStatus
		want     bool
	}{
		{domain.BookingPending, domain.BookingAssigned, true},
		{domain.BookingPending, domain.BookingInQueue, false},
		{domain.BookingAssigned, domain.BookingInQueue, true},
		{domain.BookingAssigned, domain.BookingReassigned, true},
		{domain.BookingReassigned, domain.BookingAssigned, true},
		{domain.BookingInQueue, domain.BookingActive, true},
		{domain.BookingActive, domain.BookingConfirmed, true},
		{domain.BookingConfirmed, domain.BookingInProgress, true},
		{domain.BookingInProgress, domain.BookingCompleted, true},
		{domain.BookingCompleted, domain.BookingCancelled, false},
		{domain.BookingCancelled, domain.BookingPending, false},
		{domain.BookingAssigned, domain.BookingAssigned, false},
	}

	for _, tt := range tests {
		if got := CanTransition(Booking, tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAssignmentTransitions(t *testing.T) {
	if !CanTransition(Assignment, domain.AssignmentAssigned, domain.AssignmentActive) {
		t.Fatal("expected ASSIGNED -> ACTIVE to be allowed")
	}
	if CanTransition(Assignment, domain.AssignmentCompleted, domain.AssignmentCancelled) {
		t.Fatal("expected COMPLETED to be terminal")
	}
	if CanTransition(Assignment, domain.AssignmentPending, domain.AssignmentCompleted) {
		t.Fatal("expected PENDING -> COMPLETED to be rejected")
	}
}

func TestIntakeTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.IntakeStatus
		want     bool
	}{
		{domain.IntakeCheckedIn, domain.IntakeInspecting, true},
		{domain.IntakeCheckedIn, domain.IntakeVerified, false},
		{domain.IntakeInspecting, domain.IntakeVerified, true},
		{domain.IntakeVerified, domain.IntakeFinalized, true},
		{domain.IntakeVerified, domain.IntakeInspecting, true},
		{domain.IntakeFinalized, domain.IntakeCancelled, false},
		{domain.IntakeCancelled, domain.IntakeCheckedIn, false},
	}
	for _, tt := range tests {
		if got := CanTransition(Intake, tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestWorkOrderRejectionGoesThroughRevised(t *testing.T) {
	if CanTransition(WorkOrder, domain.WorkOrderRejected, domain.WorkOrderAwaitingApproval) {
		t.Fatal("expected Rejected -> AwaitingApproval to require Revised")
	}
	if !CanTransition(WorkOrder, domain.WorkOrderRejected, domain.WorkOrderRevised) {
		t.Fatal("expected Rejected -> Revised")
	}
	if !CanTransition(WorkOrder, domain.WorkOrderRevised, domain.WorkOrderAwaitingApproval) {
		t.Fatal("expected Revised -> AwaitingApproval")
	}
	if !CanTransition(WorkOrder, domain.WorkOrderWaitingParts, domain.WorkOrderInProgress) {
		t.Fatal("expected WaitingParts -> InProgress")
	}
}

func TestTransitionReturnsInvalidTransitionError(t *testing.T) {
	got, err := Transition(Booking, domain.BookingPending, domain.BookingCompleted)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != domain.BookingPending {
		t.Fatalf("expected status to remain PENDING, got %s", got)
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindInvalidTransition {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	detail, ok := appErr.Details.(apperr.TransitionDetail)
	if !ok {
		t.Fatalf("expected TransitionDetail, got %T", appErr.Details)
	}
	if len(detail.Allowed) != 2 || detail.From != "PENDING" || detail.To != "COMPLETED" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(WorkOrder, domain.WorkOrderCompleted) {
		t.Fatal("expected Completed to be terminal")
	}
	if IsTerminal(WorkOrder, domain.WorkOrderQA) {
		t.Fatal("expected QA to be non-terminal")
	}
	if IsTerminal(Booking, domain.BookingStatus("UNKNOWN")) {
		t.Fatal("unknown statuses are not terminal")
	}
}

func TestUnknownEntityRejectsEverything(t *testing.T) {
	if CanTransition(Entity("invoice"), "a", "b") {
		t.Fatal("expected unknown entity to reject transitions")
	}
	if _, ok := Lookup(Entity("invoice")); ok {
		t.Fatal("expected no table for unknown entity")
	}
}

func TestCascades(t *testing.T) {
	if next, changed, err := OnAssignmentCreated(domain.BookingPending); err != nil || !changed || next != domain.BookingAssigned {
		t.Fatalf("PENDING: got %s %v %v", next, changed, err)
	}
	if next, changed, err := OnAssignmentCreated(domain.BookingAssigned); err != nil || changed || next != domain.BookingAssigned {
		t.Fatalf("second success must not transition: got %s %v %v", next, changed, err)
	}
	if _, _, err := OnAssignmentCreated(domain.BookingCancelled); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition for cancelled work item, got %v", err)
	}
	if next, changed := OnAssignmentsCleared(domain.BookingAssigned); !changed || next != domain.BookingReassigned {
		t.Fatalf("expected REASSIGNED, got %s", next)
	}
	if _, changed := OnAssignmentsCleared(domain.BookingInProgress); changed {
		t.Fatal("expected in-progress work item to stay put")
	}
	if next, changed := OnQueued(domain.BookingAssigned); !changed || next != domain.BookingInQueue {
		t.Fatalf("expected IN_QUEUE, got %s", next)
	}
}
