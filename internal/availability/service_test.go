package availability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRoster struct {
	calls int32
	techs []domain.Technician
	err   error
}

func (f *fakeRoster) ListTechnicians(_ context.Context, _ uuid.UUID) ([]domain.Technician, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.techs, f.err
}

type fakeAssignments struct {
	from, to time.Time
	items    []domain.Assignment
}

func (f *fakeAssignments) ListBlockingAssignments(_ context.Context, from, to time.Time) ([]domain.Assignment, error) {
	f.from, f.to = from, to
	return f.items, nil
}

type fakeWorkItems map[uuid.UUID]domain.WorkItem

func (f fakeWorkItems) GetWorkItem(_ context.Context, id uuid.UUID) (domain.WorkItem, error) {
	item, ok := f[id]
	if !ok {
		return domain.WorkItem{}, apperr.NotFound("work item not found")
	}
	return item, nil
}

func TestServiceMatchesWorkItemWindow(t *testing.T) {
	free := tech("00000000-0000-0000-0000-000000000001", weekdayWindow(centerA, time.Monday, "08:00", "17:00", "UTC"))
	busy := tech("00000000-0000-0000-0000-000000000002", weekdayWindow(centerA, time.Monday, "08:00", "17:00", "UTC"))
	item := domain.WorkItem{ID: uuid.New(), CenterID: centerA, ScheduledWindow: utcWindow(10, 0, 11, 0), Status: domain.BookingPending}

	roster := &fakeRoster{techs: []domain.Technician{free, busy}}
	assignments := &fakeAssignments{items: []domain.Assignment{assignment(busy.ID, utcWindow(10, 30, 11, 30), domain.AssignmentAssigned)}}
	svc := New(roster, assignments, fakeWorkItems{item.ID: item}, logger.Nop())

	got, err := svc.MatchForWorkItem(context.Background(), item.ID, Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].TechnicianID != free.ID {
		t.Fatalf("expected only the free technician, got %v", ids(got))
	}
	if !assignments.from.Before(item.ScheduledWindow.Start) || !assignments.to.After(item.ScheduledWindow.End) {
		t.Fatalf("expected the assignment fetch to cover the whole day, got %v - %v", assignments.from, assignments.to)
	}
}

func TestServiceRejectsInvalidRequest(t *testing.T) {
	svc := New(&fakeRoster{}, &fakeAssignments{}, fakeWorkItems{}, logger.Nop())

	_, err := svc.MatchTechnicians(context.Background(), Request{
		Window:  domain.Window{Start: monday.Add(time.Hour), End: monday},
		Filters: Filters{Shift: "night"},
	})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields, _ := appErr.Details.([]apperr.FieldError)
	if len(fields) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", fields)
	}
}

func TestServicePropagatesRosterFailure(t *testing.T) {
	boom := errors.New("roster down")
	svc := New(&fakeRoster{err: boom}, &fakeAssignments{}, fakeWorkItems{}, logger.Nop())

	_, err := svc.MatchTechnicians(context.Background(), Request{CenterID: centerA, Window: utcWindow(9, 0, 10, 0)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected roster error, got %v", err)
	}
}

func TestServiceServesRosterFromCache(t *testing.T) {
	roster := &fakeRoster{techs: []domain.Technician{tech("00000000-0000-0000-0000-000000000001", weekdayWindow(centerA, time.Monday, "08:00", "17:00", "UTC"))}}
	svc := New(roster, &fakeAssignments{}, fakeWorkItems{}, logger.Nop(), WithRosterCache(cache.NewMemoryStore(), time.Minute))

	req := Request{CenterID: centerA, Window: utcWindow(9, 0, 10, 0)}
	for i := 0; i < 3; i++ {
		got, err := svc.MatchTechnicians(context.Background(), req)
		if err != nil || len(got) != 1 {
			t.Fatalf("unexpected result %v %v", got, err)
		}
	}
	if roster.calls != 1 {
		t.Fatalf("expected one roster load, got %d", roster.calls)
	}

	if err := svc.RefreshRoster(context.Background(), []uuid.UUID{centerA}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if roster.calls != 2 {
		t.Fatalf("expected refresh to reload the roster, got %d loads", roster.calls)
	}
}
