package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workshop_backend/internal/availability"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/memstore"
	"workshop_backend/internal/technicians/transport"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return monday.Add(time.Duration(hour) * time.Hour) }

type roster struct {
	store  *memstore.Store
	center uuid.UUID
	alex   domain.Technician
	sam    domain.Technician
}

func newServer(t *testing.T) (*gin.Engine, roster) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	center := uuid.New()
	day := time.Monday
	shift := func() []domain.ScheduleWindow {
		return []domain.ScheduleWindow{{ID: uuid.New(), CenterID: center, Weekday: &day, StartTime: "08:00", EndTime: "17:00", Timezone: "UTC"}}
	}
	alex := domain.Technician{ID: uuid.New(), Name: "Alex", IsActive: true, Specialties: []string{"brakes"}, Schedule: shift()}
	sam := domain.Technician{ID: uuid.New(), Name: "Sam", IsActive: true, Specialties: []string{"electrics"}, Schedule: shift()}
	store.PutTechnician(alex)
	store.PutTechnician(sam)

	h := New(availability.New(store, store, store, logger.Nop()), store, validator.New())
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/technicians"))
	h.RegisterMatchRoutes(engine.Group("/work-items"), engine.Group("/availability"))
	return engine, roster{store: store, center: center, alex: alex, sam: sam}
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func candidateIDs(t *testing.T, rec *httptest.ResponseRecorder) []uuid.UUID {
	t.Helper()
	var got []availability.Candidate
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode candidates: %v", err)
	}
	ids := make([]uuid.UUID, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.TechnicianID)
	}
	return ids
}

func TestListRequiresCenter(t *testing.T) {
	engine, r := newServer(t)

	if rec := do(engine, http.MethodGet, "/technicians", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without centerId, got %d", rec.Code)
	}

	rec := do(engine, http.MethodGet, "/technicians?centerId="+r.center.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var techs []domain.Technician
	_ = json.Unmarshal(rec.Body.Bytes(), &techs)
	if len(techs) != 2 {
		t.Fatalf("expected both technicians, got %d", len(techs))
	}

	rec = do(engine, http.MethodGet, "/technicians?centerId="+uuid.NewString(), nil)
	techs = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &techs)
	if rec.Code != http.StatusOK || len(techs) != 0 {
		t.Fatalf("expected an empty roster for another center, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetTechnician(t *testing.T) {
	engine, r := newServer(t)

	rec := do(engine, http.MethodGet, "/technicians/"+r.alex.ID.String(), nil)
	var got domain.Technician
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if rec.Code != http.StatusOK || got.Name != "Alex" {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(engine, http.MethodGet, "/technicians/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(engine, http.MethodGet, "/technicians/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMatchLeavesOutBookedTechnicians(t *testing.T) {
	engine, r := newServer(t)
	ctx := context.Background()

	item, _ := r.store.CreateWorkItem(ctx, domain.NewWorkItem{
		Kind: domain.KindBooking, CenterID: r.center, ScheduledWindow: domain.Window{Start: at(10), End: at(11)},
	})
	if _, err := r.store.CreateAssignment(ctx, domain.NewAssignment{
		WorkItemID: &item.ID, TechnicianID: r.alex.ID, CenterID: r.center, PlannedWindow: item.ScheduledWindow,
	}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	rec := do(engine, http.MethodPost, "/availability/match", transport.MatchRequest{
		CenterID: r.center, ScheduledStartUTC: at(10), ScheduledEndUTC: at(11),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ids := candidateIDs(t, rec); len(ids) != 1 || ids[0] != r.sam.ID {
		t.Fatalf("expected only Sam, got %v", ids)
	}

	rec = do(engine, http.MethodPost, "/availability/match", transport.MatchRequest{
		CenterID: r.center, ScheduledStartUTC: at(11), ScheduledEndUTC: at(10),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an inverted window, got %d", rec.Code)
	}
}

func TestCandidatesForWorkItem(t *testing.T) {
	engine, r := newServer(t)
	item, _ := r.store.CreateWorkItem(context.Background(), domain.NewWorkItem{
		Kind: domain.KindBooking, CenterID: r.center, ScheduledWindow: domain.Window{Start: at(9), End: at(10)},
	})
	path := "/work-items/" + item.ID.String() + "/candidates"

	rec := do(engine, http.MethodGet, path+"?specialty=brakes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ids := candidateIDs(t, rec); len(ids) != 1 || ids[0] != r.alex.ID {
		t.Fatalf("expected only the brakes specialist, got %v", ids)
	}

	if rec := do(engine, http.MethodGet, path+"?shift=night", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown shift, got %d", rec.Code)
	}
	if rec := do(engine, http.MethodGet, "/work-items/"+uuid.NewString()+"/candidates", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown work item, got %d", rec.Code)
	}
}
