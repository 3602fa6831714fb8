package conflict

import (
	"testing"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func window(sh, sm, eh, em int) domain.Window {
	return domain.Window{Start: at(sh, sm), End: at(eh, em)}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	windows := []domain.Window{
		window(9, 0, 10, 0),
		window(9, 30, 10, 30),
		window(10, 0, 11, 0),
		window(8, 0, 12, 0),
		window(11, 0, 11, 15),
	}
	for _, a := range windows {
		for _, b := range windows {
			if Overlaps(a.Start, a.End, b.Start, b.End) != Overlaps(b.Start, b.End, a.Start, a.End) {
				t.Errorf("overlap not symmetric for %v and %v", a, b)
			}
		}
	}
}

func TestOverlapsBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Window
		want bool
	}{
		{name: "back to back", a: window(9, 0, 10, 0), b: window(10, 0, 11, 0), want: false},
		{name: "one minute overlap", a: window(9, 0, 10, 0), b: window(9, 59, 11, 0), want: true},
		{name: "contained", a: window(8, 0, 12, 0), b: window(9, 0, 10, 0), want: true},
		{name: "identical", a: window(9, 0, 10, 0), b: window(9, 0, 10, 0), want: true},
		{name: "disjoint", a: window(9, 0, 10, 0), b: window(13, 0, 14, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindowsOverlap(tt.a, tt.b); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestConflictsConsidersOnlyBlockingAssignmentsOfTechnician(t *testing.T) {
	tech := uuid.New()
	other := uuid.New()
	centerA, centerB := uuid.New(), uuid.New()

	blockingOtherCenter := domain.Assignment{ID: uuid.New(), TechnicianID: tech, CenterID: centerB, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentActive}
	cancelled := domain.Assignment{ID: uuid.New(), TechnicianID: tech, CenterID: centerA, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentCancelled}
	completed := domain.Assignment{ID: uuid.New(), TechnicianID: tech, CenterID: centerA, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentCompleted}
	otherTech := domain.Assignment{ID: uuid.New(), TechnicianID: other, CenterID: centerA, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentAssigned}
	pending := domain.Assignment{ID: uuid.New(), TechnicianID: tech, CenterID: centerA, PlannedWindow: window(9, 30, 9, 45), Status: domain.AssignmentPending}

	existing := []domain.Assignment{blockingOtherCenter, cancelled, completed, otherTech, pending}
	got := Conflicts(tech, window(9, 15, 9, 50), existing)

	if len(got) != 2 {
		t.Fatalf("expected 2 conflicts, got %d: %+v", len(got), got)
	}
	ids := IDs(got)
	if ids[0] != blockingOtherCenter.ID.String() || ids[1] != pending.ID.String() {
		t.Fatalf("unexpected conflicting ids %v", ids)
	}
}

func TestExcludeSkipsTheAssignmentBeingRevalidated(t *testing.T) {
	tech := uuid.New()
	self := domain.Assignment{ID: uuid.New(), TechnicianID: tech, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentAssigned}

	if !HasConflict(tech, self.PlannedWindow, []domain.Assignment{self}) {
		t.Fatal("expected conflict without exclusion")
	}
	if HasConflict(tech, self.PlannedWindow, []domain.Assignment{self}, Exclude(self.ID)) {
		t.Fatal("expected no conflict when excluding the assignment itself")
	}
}

func TestHasConflictEmpty(t *testing.T) {
	if HasConflict(uuid.New(), window(9, 0, 10, 0), nil) {
		t.Fatal("expected no conflict against an empty schedule")
	}
}

func TestErrorCarriesConflictDetail(t *testing.T) {
	tech, center := uuid.New(), uuid.New()
	blocking := domain.Assignment{ID: uuid.New(), TechnicianID: tech, PlannedWindow: window(9, 0, 10, 0), Status: domain.AssignmentAssigned}

	err := Error(tech, center, []domain.Assignment{blocking})
	if err.HTTPStatus() != 409 || err.Code() != "conflict" {
		t.Fatalf("expected 409 conflict, got %d %s", err.HTTPStatus(), err.Code())
	}
	detail, ok := err.Details.(apperr.ConflictDetail)
	if !ok {
		t.Fatalf("expected ConflictDetail, got %T", err.Details)
	}
	if detail.TechnicianID != tech.String() || detail.CenterID != center.String() || len(detail.ConflictingAssignmentIDs) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}
