package service

import (
	"context"
	"sync"
	"testing"
	"time"

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

func (b *recordingBus) transitions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if changed, ok := e.(events.WorkOrderStatusChanged); ok {
			out = append(out, changed.From+">"+changed.To)
		}
	}
	return out
}

func newIntake(t *testing.T, store *memstore.Store, path ...domain.IntakeStatus) domain.ServiceIntake {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	booking, err := store.CreateWorkItem(ctx, domain.NewWorkItem{
		Kind: domain.KindBooking, CenterID: uuid.New(), ScheduledWindow: domain.Window{Start: start, End: start.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	intake, err := store.CreateIntake(ctx, domain.NewIntake{BookingID: booking.ID})
	if err != nil {
		t.Fatalf("seed intake: %v", err)
	}
	for _, next := range path {
		if intake, err = store.UpdateIntakeStatus(ctx, intake.ID, intake.Status, next); err != nil {
			t.Fatalf("advance intake to %s: %v", next, err)
		}
	}
	return intake
}

var finalized = []domain.IntakeStatus{domain.IntakeInspecting, domain.IntakeVerified, domain.IntakeFinalized}

func TestCreateFromIntakeRequiresFinalized(t *testing.T) {
	store := memstore.New()
	svc := New(store, store, &recordingBus{}, logger.Nop())
	intake := newIntake(t, store, domain.IntakeInspecting)

	_, err := svc.CreateFromIntake(context.Background(), domain.NewWorkOrder{IntakeID: intake.ID})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	domainErr, _ := apperr.As(err)
	detail, _ := domainErr.Details.(apperr.TransitionDetail)
	if detail.From != string(domain.IntakeInspecting) {
		t.Fatalf("expected the error to name the intake status, got %+v", domainErr.Details)
	}
}

func TestCreateFromIntakeOncePerIntake(t *testing.T) {
	store := memstore.New()
	svc := New(store, store, &recordingBus{}, logger.Nop())
	intake := newIntake(t, store, finalized...)
	ctx := context.Background()

	wo, err := svc.CreateFromIntake(ctx, domain.NewWorkOrder{IntakeID: intake.ID, TaskTitles: []string{" Replace pads ", "", "Bleed brakes"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if wo.Status != domain.WorkOrderDraft || len(wo.Tasks) != 2 || wo.Tasks[0].Title != "Replace pads" {
		t.Fatalf("unexpected work order %+v", wo)
	}

	if _, err := svc.CreateFromIntake(ctx, domain.NewWorkOrder{IntakeID: intake.ID}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on the second work order, got %v", err)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	store := memstore.New()
	bus := &recordingBus{}
	svc := New(store, store, bus, logger.Nop())
	intake := newIntake(t, store, finalized...)
	ctx := context.Background()

	wo, err := svc.CreateFromIntake(ctx, domain.NewWorkOrder{IntakeID: intake.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reason := "  price too high "
	steps := []struct {
		to    domain.WorkOrderStatus
		notes *string
	}{
		{domain.WorkOrderAwaitingApproval, nil},
		{domain.WorkOrderRejected, &reason},
		{domain.WorkOrderRevised, nil},
		{domain.WorkOrderAwaitingApproval, nil},
		{domain.WorkOrderApproved, nil},
		{domain.WorkOrderInProgress, nil},
		{domain.WorkOrderQA, nil},
		{domain.WorkOrderCompleted, nil},
	}
	for _, step := range steps {
		if wo, err = svc.Transition(ctx, wo.ID, step.to, step.notes); err != nil {
			t.Fatalf("transition to %s: %v", step.to, err)
		}
	}
	if wo.ApprovalNotes == nil || *wo.ApprovalNotes != "price too high" {
		t.Fatalf("expected the rejection notes to be kept, got %v", wo.ApprovalNotes)
	}
	if got := bus.transitions(); len(got) != len(steps)+1 || got[0] != ">Draft" {
		t.Fatalf("unexpected events %v", got)
	}

	if _, err := svc.Transition(ctx, wo.ID, domain.WorkOrderInProgress, nil); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected completed to be terminal, got %v", err)
	}
}

func TestSetTaskDone(t *testing.T) {
	store := memstore.New()
	svc := New(store, store, &recordingBus{}, logger.Nop())
	intake := newIntake(t, store, finalized...)
	ctx := context.Background()

	wo, _ := svc.CreateFromIntake(ctx, domain.NewWorkOrder{IntakeID: intake.ID, TaskTitles: []string{"Oil change"}})
	updated, err := svc.SetTaskDone(ctx, wo.ID, wo.Tasks[0].ID, true)
	if err != nil {
		t.Fatalf("set task: %v", err)
	}
	if !updated.Tasks[0].Done {
		t.Fatal("expected task to be done")
	}
	if _, err := svc.SetTaskDone(ctx, wo.ID, uuid.New(), true); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for an unknown task, got %v", err)
	}
}
