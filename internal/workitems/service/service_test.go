package service

import (
	"context"
	"testing"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/memstore"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

type countingBus struct{ published []events.Event }

func (b *countingBus) Publish(_ context.Context, e events.Event) { b.published = append(b.published, e) }
func (b *countingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *countingBus) Subscribe(string, events.Handler) {}

func seeded(t *testing.T, status domain.BookingStatus) (*Service, *countingBus, domain.WorkItem) {
	t.Helper()
	store := memstore.New()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	item := domain.WorkItem{
		ID: uuid.New(), Kind: domain.KindBooking, CenterID: uuid.New(),
		ScheduledWindow: domain.Window{Start: start, End: start.Add(time.Hour)},
		Status:          status,
	}
	store.PutWorkItem(item)
	bus := &countingBus{}
	return New(store, bus, logger.Nop()), bus, item
}

func TestTransitionRejectsOrchestratorOwnedStatuses(t *testing.T) {
	svc, _, item := seeded(t, domain.BookingPending)
	for _, target := range []domain.BookingStatus{domain.BookingAssigned, domain.BookingInQueue, domain.BookingReassigned, domain.BookingPending} {
		if _, err := svc.Transition(context.Background(), item.ID, target, nil); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", target, err)
		}
	}
}

func TestTransitionFollowsBookingTable(t *testing.T) {
	svc, bus, item := seeded(t, domain.BookingInQueue)
	ctx := context.Background()

	if _, err := svc.Transition(ctx, item.ID, domain.BookingConfirmed, nil); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected IN_QUEUE -> CONFIRMED to be rejected, got %v", err)
	}
	for _, target := range []domain.BookingStatus{domain.BookingActive, domain.BookingConfirmed, domain.BookingInProgress, domain.BookingCompleted} {
		updated, err := svc.Transition(ctx, item.ID, target, nil)
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("expected %s, got %s", target, updated.Status)
		}
	}
	if len(bus.published) != 4 {
		t.Fatalf("expected 4 events, got %d", len(bus.published))
	}
	if _, err := svc.Transition(ctx, item.ID, domain.BookingCancelled, nil); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected terminal status to stay terminal, got %v", err)
	}
}

func TestTransitionWithStaleExpectationConflicts(t *testing.T) {
	svc, _, item := seeded(t, domain.BookingActive)
	stale := domain.BookingInQueue

	_, err := svc.Transition(context.Background(), item.ID, domain.BookingCancelled, &stale)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := seeded(t, domain.BookingPending)
	_, err := svc.Create(context.Background(), domain.NewWorkItem{Kind: "repair"})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fields := appErr.Details.([]apperr.FieldError); len(fields) != 3 {
		t.Fatalf("expected kind, center and window to be reported, got %+v", fields)
	}
}

func TestCreateStoresPhoneCustomerRefsInE164(t *testing.T) {
	store := memstore.New()
	svc := New(store, &countingBus{}, logger.Nop())
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	window := domain.Window{Start: start, End: start.Add(time.Hour)}
	ctx := context.Background()

	for ref, want := range map[string]string{
		" 06 12345678 ": "+31612345678",
		"  cust-7 ":     "cust-7",
		"":              "",
	} {
		item, err := svc.Create(ctx, domain.NewWorkItem{Kind: domain.KindBooking, CenterID: uuid.New(), ScheduledWindow: window, CustomerRef: ref})
		if err != nil {
			t.Fatalf("create %q: %v", ref, err)
		}
		if item.CustomerRef != want {
			t.Fatalf("customer ref %q stored as %q, want %q", ref, item.CustomerRef, want)
		}
	}

	store.FlagCustomer("+31 6 12345678")
	item, _ := svc.Create(ctx, domain.NewWorkItem{Kind: domain.KindBooking, CenterID: uuid.New(), ScheduledWindow: window, CustomerRef: "0612345678"})
	if flagged, err := store.IsFlagged(ctx, item.ID); err != nil || !flagged {
		t.Fatalf("expected the flag to match across phone formats, got %v (%v)", flagged, err)
	}
}
