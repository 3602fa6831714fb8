package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/memstore"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// unreachableStore fails the test through a nil-interface panic if any
// method is called.
type unreachableStore struct{ Store }

type stubRisk struct {
	flagged bool
	err     error
}

func (r stubRisk) IsFlagged(context.Context, uuid.UUID) (bool, error) { return r.flagged, r.err }

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func window(startHour, startMin, endHour, endMin int) domain.Window {
	return domain.Window{
		Start: day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

type fixture struct {
	store *memstore.Store
	bus   *recordingBus
	orch  *Orchestrator
	item  domain.WorkItem
	techs []uuid.UUID
}

func newFixture(t *testing.T, technicians int, opts ...Option) fixture {
	t.Helper()
	store := memstore.New()
	bus := &recordingBus{}
	center := uuid.New()

	var techs []uuid.UUID
	for i := 0; i < technicians; i++ {
		id := uuid.New()
		store.PutTechnician(domain.Technician{ID: id, Name: "tech", IsActive: true})
		techs = append(techs, id)
	}
	item, err := store.CreateWorkItem(context.Background(), domain.NewWorkItem{
		Kind: domain.KindBooking, CenterID: center, ScheduledWindow: window(9, 0, 10, 0),
	})
	if err != nil {
		t.Fatalf("seed work item: %v", err)
	}
	return fixture{
		store: store,
		bus:   bus,
		orch:  New(store, bus, logger.Nop(), opts...),
		item:  item,
		techs: techs,
	}
}

func (f fixture) request(techID uuid.UUID, w domain.Window) CreateRequest {
	return CreateRequest{WorkItemID: &f.item.ID, TechnicianID: techID, CenterID: f.item.CenterID, Window: w}
}

// elsewhere books a second work item at the fixture's center and returns a
// request placing techID on it for w.
func (f fixture) elsewhere(t *testing.T, techID uuid.UUID, w domain.Window) CreateRequest {
	t.Helper()
	other, err := f.store.CreateWorkItem(context.Background(), domain.NewWorkItem{
		Kind: domain.KindBooking, CenterID: f.item.CenterID, ScheduledWindow: w,
	})
	if err != nil {
		t.Fatalf("seed second work item: %v", err)
	}
	return CreateRequest{WorkItemID: &other.ID, TechnicianID: techID, CenterID: other.CenterID, Window: w}
}

func (f fixture) itemStatus(t *testing.T) domain.BookingStatus {
	t.Helper()
	item, err := f.store.GetWorkItem(context.Background(), f.item.ID)
	if err != nil {
		t.Fatalf("get work item: %v", err)
	}
	return item.Status
}

func TestCreateValidatesBeforeReachingStore(t *testing.T) {
	orch := New(unreachableStore{}, &recordingBus{}, logger.Nop())

	tests := []struct {
		name string
		req  CreateRequest
		path string
	}{
		{name: "missing booking", req: CreateRequest{TechnicianID: uuid.New(), CenterID: uuid.New(), Window: window(9, 0, 10, 0)}, path: "bookingId"},
		{name: "nil booking id", req: CreateRequest{WorkItemID: &uuid.Nil, TechnicianID: uuid.New(), CenterID: uuid.New(), Window: window(9, 0, 10, 0)}, path: "bookingId"},
		{name: "missing technician", req: CreateRequest{CenterID: uuid.New(), Window: window(9, 0, 10, 0)}, path: "technicianId"},
		{name: "missing center", req: CreateRequest{TechnicianID: uuid.New(), Window: window(9, 0, 10, 0)}, path: "centerId"},
		{name: "inverted window", req: CreateRequest{TechnicianID: uuid.New(), CenterID: uuid.New(), Window: window(10, 0, 9, 0)}, path: "plannedEndUtc"},
		{name: "empty window", req: CreateRequest{TechnicianID: uuid.New(), CenterID: uuid.New(), Window: window(9, 0, 9, 0)}, path: "plannedEndUtc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Create(context.Background(), tt.req)
			appErr, ok := apperr.As(err)
			if !ok || appErr.Kind != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			fields, _ := appErr.Details.([]apperr.FieldError)
			found := false
			for _, f := range fields {
				if f.Path == tt.path {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %q in %+v", tt.path, fields)
			}
		})
	}
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	f := newFixture(t, 1)
	tech := f.techs[0]

	const callers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := f.orch.Create(context.Background(), f.request(tech, window(9, offset, 10, offset)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if apperr.Is(err, apperr.KindConflict) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, successes, conflicts)
	}
}

func TestConflictDetailsNameTheBlockingAssignment(t *testing.T) {
	f := newFixture(t, 1)
	tech := f.techs[0]
	ctx := context.Background()

	first, err := f.orch.Create(ctx, f.request(tech, window(9, 0, 10, 0)))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = f.orch.Create(ctx, f.request(tech, window(9, 30, 10, 30)))
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	detail, ok := appErr.Details.(apperr.ConflictDetail)
	if !ok {
		t.Fatalf("expected ConflictDetail, got %T", appErr.Details)
	}
	if detail.TechnicianID != tech.String() || len(detail.ConflictingAssignmentIDs) != 1 ||
		detail.ConflictingAssignmentIDs[0] != first.Assignment.ID.String() {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestBackToBackWindowsAreAccepted(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, err := f.orch.Create(ctx, f.request(f.techs[0], window(9, 0, 10, 0))); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.orch.Create(ctx, f.elsewhere(t, f.techs[0], window(10, 0, 11, 0))); err != nil {
		t.Fatalf("adjacent create: %v", err)
	}
}

func TestCreateMovesWorkItemToAssignedAndPublishes(t *testing.T) {
	f := newFixture(t, 1)

	res, err := f.orch.Create(context.Background(), f.request(f.techs[0], f.item.ScheduledWindow))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Assignment.Status != domain.AssignmentAssigned {
		t.Fatalf("expected ASSIGNED assignment, got %s", res.Assignment.Status)
	}
	if got := f.itemStatus(t); got != domain.BookingAssigned {
		t.Fatalf("expected work item ASSIGNED, got %s", got)
	}
	if got := len(f.bus.named(events.AssignmentCreated{}.EventName())); got != 1 {
		t.Fatalf("expected one created event, got %d", got)
	}
}

func TestCreateManyKeepsSuccessesOnPartialFailure(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	busy := f.techs[1]

	if _, err := f.orch.Create(ctx, f.elsewhere(t, busy, window(8, 30, 9, 30))); err != nil {
		t.Fatalf("seed busy technician: %v", err)
	}

	results, err := f.orch.CreateMany(ctx, f.item.ID, f.item.CenterID, f.item.ScheduledWindow,
		[]uuid.UUID{f.techs[0], busy, f.techs[2], f.techs[0]})
	if err != nil {
		t.Fatalf("create many: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("expected free technicians to succeed: %v / %v", results[0].Err, results[2].Err)
	}
	if !apperr.Is(results[1].Err, apperr.KindConflict) {
		t.Fatalf("expected conflict for busy technician, got %v", results[1].Err)
	}
	if !apperr.Is(results[3].Err, apperr.KindValidation) {
		t.Fatalf("expected duplicate technician to be rejected, got %v", results[3].Err)
	}
	for i, r := range results {
		if r.TechnicianID != []uuid.UUID{f.techs[0], busy, f.techs[2], f.techs[0]}[i] {
			t.Fatalf("result %d out of request order", i)
		}
	}
	if got := f.itemStatus(t); got != domain.BookingAssigned {
		t.Fatalf("expected work item ASSIGNED, got %s", got)
	}
}

func TestCreateManyRequiresTechnicians(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.orch.CreateMany(context.Background(), f.item.ID, f.item.CenterID, f.item.ScheduledWindow, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelCascadesOnlyWhenLastAssignmentGoes(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	results, _ := f.orch.CreateMany(ctx, f.item.ID, f.item.CenterID, f.item.ScheduledWindow, f.techs)
	first, second := results[0].Result.Assignment, results[1].Result.Assignment

	res, err := f.orch.Cancel(ctx, first.ID)
	if err != nil {
		t.Fatalf("cancel first: %v", err)
	}
	if !res.HasActiveAssignments {
		t.Fatal("expected the second assignment to keep the work item active")
	}
	if got := f.itemStatus(t); got != domain.BookingAssigned {
		t.Fatalf("expected work item to stay ASSIGNED, got %s", got)
	}

	res, err = f.orch.Cancel(ctx, second.ID)
	if err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	if res.HasActiveAssignments {
		t.Fatal("expected no active assignments")
	}
	if got := f.itemStatus(t); got != domain.BookingReassigned {
		t.Fatalf("expected work item REASSIGNED, got %s", got)
	}
	if got := len(f.bus.named(events.AssignmentCancelled{}.EventName())); got != 2 {
		t.Fatalf("expected two cancel events, got %d", got)
	}
}

func TestCancelTerminalAssignmentIsInvalidTransition(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	res, _ := f.orch.Create(ctx, f.request(f.techs[0], f.item.ScheduledWindow))
	if _, err := f.orch.Transition(ctx, res.Assignment.ID, domain.AssignmentActive); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := f.orch.Transition(ctx, res.Assignment.ID, domain.AssignmentCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.orch.Cancel(ctx, res.Assignment.ID); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestReassignFailureLeavesWorkItemReadyAndPublishes(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	original, busy := f.techs[0], f.techs[1]

	res, err := f.orch.Create(ctx, f.request(original, f.item.ScheduledWindow))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.orch.Create(ctx, f.elsewhere(t, busy, window(9, 15, 9, 45))); err != nil {
		t.Fatalf("seed busy technician: %v", err)
	}

	_, err = f.orch.Reassign(ctx, res.Assignment.ID, busy)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.itemStatus(t); got != domain.BookingReassigned {
		t.Fatalf("expected work item REASSIGNED, got %s", got)
	}
	ready := f.bus.named(events.WorkItemReadyForAssignment{}.EventName())
	if len(ready) != 1 {
		t.Fatalf("expected one ready-for-assignment event, got %d", len(ready))
	}
	if e := ready[0].(events.WorkItemReadyForAssignment); e.WorkItemID != f.item.ID || e.PreviousAssignmentID != res.Assignment.ID {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestReassignMovesWorkToNewTechnician(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	res, _ := f.orch.Create(ctx, f.request(f.techs[0], f.item.ScheduledWindow))
	moved, err := f.orch.Reassign(ctx, res.Assignment.ID, f.techs[1])
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved.Assignment.TechnicianID != f.techs[1] || !moved.Assignment.PlannedWindow.Start.Equal(res.Assignment.PlannedWindow.Start) {
		t.Fatalf("unexpected reassignment: %+v", moved.Assignment)
	}
	if got := f.itemStatus(t); got != domain.BookingAssigned {
		t.Fatalf("expected work item ASSIGNED, got %s", got)
	}
	if _, err := f.orch.Reassign(ctx, moved.Assignment.ID, f.techs[1]); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected same-technician reassignment to be rejected, got %v", err)
	}
}

func TestRiskCheckerFailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		risk    stubRisk
		flagged bool
	}{
		{name: "collaborator down", risk: stubRisk{err: errors.New("connection refused")}},
		{name: "flagged", risk: stubRisk{flagged: true}, flagged: true},
		{name: "clean", risk: stubRisk{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1, WithRiskChecker(tt.risk))
			res, err := f.orch.Create(context.Background(), f.request(f.techs[0], f.item.ScheduledWindow))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.RiskFlagged != tt.flagged {
				t.Fatalf("expected flagged=%v, got %v", tt.flagged, res.RiskFlagged)
			}
		})
	}
}

func TestTransitionRules(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	res, _ := f.orch.Create(ctx, f.request(f.techs[0], f.item.ScheduledWindow))
	id := res.Assignment.ID

	if _, err := f.orch.Transition(ctx, id, domain.AssignmentCancelled); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected cancel through Transition to be rejected, got %v", err)
	}
	if _, err := f.orch.Transition(ctx, id, domain.AssignmentCompleted); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected ASSIGNED -> COMPLETED to be rejected, got %v", err)
	}
	updated, err := f.orch.Transition(ctx, id, domain.AssignmentActive)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if updated.Status != domain.AssignmentActive {
		t.Fatalf("expected ACTIVE, got %s", updated.Status)
	}
	if got := len(f.bus.named(events.AssignmentStatusChanged{}.EventName())); got != 1 {
		t.Fatalf("expected one status event, got %d", got)
	}
}

func TestDispatcherReportsDetachedFailures(t *testing.T) {
	bus := &recordingBus{}
	d := NewDispatcher(bus, logger.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	failed := Dispatch(ctx, d, "assignments.cancel", domain.CancelResult{}, func(ctx context.Context) (domain.CancelResult, error) {
		if ctx.Err() != nil {
			t.Error("expected the dispatched context to outlive its initiator")
		}
		return domain.CancelResult{}, apperr.Conflict("stale")
	})
	ok := Dispatch(ctx, d, "assignments.create", 0, func(context.Context) (int, error) { return 7, nil })
	cancel()
	d.Wait()

	if _, state, err := failed.Snapshot(); state != cache.StateFailed || !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected failed provisional, got %s %v", state, err)
	}
	if value, state, _ := ok.Snapshot(); state != cache.StateConfirmed || value != 7 {
		t.Fatalf("expected confirmed 7, got %s %v", state, value)
	}

	failures := bus.named(events.MutationFailed{}.EventName())
	if len(failures) != 1 {
		t.Fatalf("expected one MutationFailed event, got %d", len(failures))
	}
	if e := failures[0].(events.MutationFailed); e.Operation != "assignments.cancel" || e.Code != "conflict" {
		t.Fatalf("unexpected event: %+v", e)
	}
}
