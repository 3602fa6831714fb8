package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"workshop_backend/internal/assignments/service"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	intaketransport "workshop_backend/internal/intake/transport"
	queuetransport "workshop_backend/internal/queue/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

type testConfig struct {
	baseURL string
	retries int
}

func (c testConfig) GetAPIBaseURL() string               { return c.baseURL }
func (c testConfig) GetAPIToken() string                 { return "test-token" }
func (c testConfig) GetAPITimeout() time.Duration        { return 2 * time.Second }
func (c testConfig) GetAPIRetryBaseDelay() time.Duration { return time.Millisecond }
func (c testConfig) GetAPIMaxRetries() int               { return c.retries }
func (c testConfig) GetAutosaveInterval() time.Duration  { return time.Hour }

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(testConfig{baseURL: srv.URL + "/", retries: 3}, logger.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(testConfig{}, logger.Nop()); err == nil {
		t.Fatal("expected an error without a base URL")
	}
}

func TestReorderRetriesTransientFailures(t *testing.T) {
	centerID := uuid.New()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	var calls atomic.Int32

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/queues/"+centerID.String()+"/2026-03-02/order" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		var body queuetransport.ReorderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ExpectedVersion == nil || *body.ExpectedVersion != 4 {
			t.Errorf("unexpected body %+v (%v)", body, err)
		}
		if n < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database unavailable", "code": "transient_server_error"})
			return
		}
		writeJSON(w, http.StatusOK, domain.Queue{CenterID: centerID, Date: date, Version: 5})
	})

	queue, err := client.ReorderQueue(context.Background(), centerID, date, 4, ids)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if queue.Version != 5 {
		t.Fatalf("expected version 5, got %d", queue.Version)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected two retries, got %d calls", calls.Load())
	}
}

func TestTransientFailureGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom", "code": "internal"})
	})

	_, err := client.CancelAssignment(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected one call plus three retries, got %d", calls.Load())
	}
}

func TestConflictIsNotRetried(t *testing.T) {
	technicianID := uuid.New()
	clash := uuid.New()
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "technician is already booked",
			"code":  "conflict",
			"details": apperr.ConflictDetail{
				TechnicianID:             technicianID.String(),
				ConflictingAssignmentIDs: []string{clash.String()},
			},
		})
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	booking := uuid.New()
	_, err := client.CreateAssignment(context.Background(), service.CreateRequest{
		WorkItemID:   &booking,
		TechnicianID: technicianID,
		CenterID:     uuid.New(),
		Window:       domain.Window{Start: start, End: start.Add(time.Hour)},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
	domainErr, _ := apperr.As(err)
	detail, ok := domainErr.Details.(apperr.ConflictDetail)
	if !ok || len(detail.ConflictingAssignmentIDs) != 1 || detail.ConflictingAssignmentIDs[0] != clash.String() {
		t.Fatalf("expected typed conflict details, got %#v", domainErr.Details)
	}
}

func TestIncompleteChecklistCarriesMissingItems(t *testing.T) {
	intakeID := uuid.New()
	missing := uuid.New().String()
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "checklist incomplete",
			"code":    "incomplete_checklist",
			"details": apperr.MissingItems{IntakeID: intakeID.String(), MissingItemIDs: []string{missing}},
		})
	})

	_, err := client.TransitionIntake(context.Background(), intakeID, domain.IntakeVerified)
	if !apperr.Is(err, apperr.KindIncompleteChecklist) {
		t.Fatalf("expected incomplete checklist, got %v", err)
	}
	domainErr, _ := apperr.As(err)
	items, ok := domainErr.Details.(apperr.MissingItems)
	if !ok || len(items.MissingItemIDs) != 1 || items.MissingItemIDs[0] != missing {
		t.Fatalf("unexpected details %#v", domainErr.Details)
	}
}

func TestValidationErrorWithoutCodeFallsBackToStatus(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid request",
			"details": []apperr.FieldError{{Path: "status", Message: "must be one of the known statuses"}},
		})
	})

	_, err := client.TransitionWorkOrder(context.Background(), uuid.New(), "Shipped", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	domainErr, _ := apperr.As(err)
	if fields, ok := domainErr.Details.([]apperr.FieldError); !ok || fields[0].Path != "status" {
		t.Fatalf("unexpected details %#v", domainErr.Details)
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(testConfig{baseURL: url, retries: 1}, logger.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetQueue(context.Background(), uuid.New(), time.Now())
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAutosaverWritesThroughClient(t *testing.T) {
	intakeID := uuid.New()
	itemID := uuid.New()
	var (
		mu       sync.Mutex
		received intaketransport.SaveResponsesRequest
	)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/intakes/"+intakeID.String()+"/responses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&received)
		responses := received.ToDomain()
		mu.Unlock()
		writeJSON(w, http.StatusOK, intaketransport.ResponsesResponse{IntakeID: intakeID, Responses: responses})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	saver := client.NewAutosaver(testConfig{}, intakeID, nopBus{}, logger.Nop())
	go saver.Run(ctx)

	done := true
	if err := saver.Set(ctx, domain.ChecklistResponse{ItemID: itemID, BoolValue: &done}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received.Responses) != 1 || received.Responses[0].ChecklistItemID != itemID || !*received.Responses[0].BoolValue {
		t.Fatalf("unexpected request body %+v", received)
	}
	if n, _ := saver.Pending(ctx); n != 0 {
		t.Fatalf("expected the buffer to be cleared, got %d", n)
	}
}

type capturingBus struct {
	nopBus
	mu     sync.Mutex
	events []events.Event
}

func (b *capturingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *capturingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

func TestReorderAsyncSettlesWithServerRejection(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		version := int64(8)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "queue was changed by someone else",
			"code":    "conflict",
			"details": apperr.ConflictDetail{CurrentVersion: &version},
		})
	})
	bus := &capturingBus{}
	d := service.NewDispatcher(bus, logger.Nop(), time.Second)

	optimistic := domain.Queue{CenterID: uuid.New(), Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Version: 7}
	p := client.ReorderQueueAsync(context.Background(), d, optimistic, nil)

	_, err := p.Wait(context.Background())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	d.Wait()
	if names := bus.names(); len(names) != 1 || names[0] != "mutations.failed" {
		t.Fatalf("expected one mutation failure event, got %v", names)
	}
}

func TestCancelAssignmentAsyncConfirms(t *testing.T) {
	id := uuid.New()
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/assignments/"+id.String()+"/cancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, domain.CancelResult{
			Assignment:           domain.Assignment{ID: id, Status: domain.AssignmentCancelled},
			HasActiveAssignments: true,
		})
	})
	d := service.NewDispatcher(nopBus{}, logger.Nop(), time.Second)

	p := client.CancelAssignmentAsync(context.Background(), d, domain.Assignment{ID: id, Status: domain.AssignmentAssigned})
	result, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !result.HasActiveAssignments || result.Assignment.Status != domain.AssignmentCancelled {
		t.Fatalf("expected the server's answer, got %+v", result)
	}
}
