package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"
	queuetransport "workshop_backend/internal/queue/transport"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

type queueServer struct {
	queue    domain.Queue
	reorders int
}

func newQueueServer(t *testing.T, tickets int) (*queueServer, *httptest.Server) {
	t.Helper()
	qs := &queueServer{queue: domain.Queue{
		CenterID: uuid.New(),
		Date:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Version:  3,
	}}
	for i := 0; i < tickets; i++ {
		qs.queue.Tickets = append(qs.queue.Tickets, domain.QueueTicket{
			ID: uuid.New(), CenterID: qs.queue.CenterID, Date: qs.queue.Date, Position: i + 1, WorkItemID: uuid.New(),
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/queues/{center}/{date}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(qs.queue)
	})
	mux.HandleFunc("PUT /api/v1/queues/{center}/{date}/order", func(w http.ResponseWriter, r *http.Request) {
		qs.reorders++
		var req queuetransport.ReorderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ExpectedVersion == nil || *req.ExpectedVersion != qs.queue.Version {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "queue was changed by someone else", "code": "conflict"})
			return
		}
		byID := make(map[uuid.UUID]domain.QueueTicket)
		for _, tk := range qs.queue.Tickets {
			byID[tk.ID] = tk
		}
		reordered := make([]domain.QueueTicket, 0, len(req.OrderedIDs))
		for i, id := range req.OrderedIDs {
			tk := byID[id]
			tk.Position = i + 1
			reordered = append(reordered, tk)
		}
		qs.queue.Tickets = reordered
		qs.queue.Version++
		_ = json.NewEncoder(w).Encode(qs.queue)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return qs, srv
}

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("API_MAX_RETRIES", "0")
	t.Setenv("API_RETRY_BASE_DELAY", "1ms")
}

func decodeAll(t *testing.T, r io.Reader) []settlement {
	t.Helper()
	dec := json.NewDecoder(r)
	var out []settlement
	for {
		var s settlement
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return out
			}
			t.Fatalf("decode output: %v", err)
		}
		out = append(out, s)
	}
}

func TestReorderAsyncPrintsOptimisticThenConfirmed(t *testing.T) {
	setEnv(t)
	qs, srv := newQueueServer(t, 3)
	first, second, third := qs.queue.Tickets[0].ID, qs.queue.Tickets[1].ID, qs.queue.Tickets[2].ID

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"reorder", "--api-url", srv.URL,
		"--center", qs.queue.CenterID.String(), "--date", "2026-03-02",
		"--order", strings.Join([]string{third.String(), first.String(), second.String()}, ","),
		"--async",
	}, &out)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	printed := decodeAll(t, &out)
	if len(printed) != 2 {
		t.Fatalf("expected two settlements, got %d: %s", len(printed), out.String())
	}
	if printed[0].State != cache.StatePending || printed[1].State != cache.StateConfirmed {
		t.Fatalf("unexpected states %s then %s", printed[0].State, printed[1].State)
	}
	if qs.reorders != 1 || qs.queue.Tickets[0].ID != third || qs.queue.Version != 4 {
		t.Fatalf("expected the server to apply the order once, got %+v", qs.queue)
	}
}

func TestReorderAsyncReportsServerRejection(t *testing.T) {
	setEnv(t)
	qs, srv := newQueueServer(t, 2)
	ids := []string{qs.queue.Tickets[1].ID.String(), qs.queue.Tickets[0].ID.String()}

	// Another client wins the race between our read and our write.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/queues/{center}/{date}", func(w http.ResponseWriter, r *http.Request) {
		stale := qs.queue
		stale.Version--
		_ = json.NewEncoder(w).Encode(stale)
	})
	mux.Handle("/", srv.Config.Handler)
	racing := httptest.NewServer(mux)
	defer racing.Close()

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"reorder", "--api-url", racing.URL,
		"--center", qs.queue.CenterID.String(), "--date", "2026-03-02",
		"--order", strings.Join(ids, ","), "--async",
	}, &out)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	printed := decodeAll(t, &out)
	if len(printed) != 2 || printed[1].State != cache.StateFailed || printed[1].Error == "" {
		t.Fatalf("expected a failed settlement, got %s", out.String())
	}
}

func TestReorderRejectsIncompleteOrderLocally(t *testing.T) {
	setEnv(t)
	qs, srv := newQueueServer(t, 2)

	err := run(context.Background(), []string{
		"reorder", "--api-url", srv.URL,
		"--center", qs.queue.CenterID.String(), "--date", "2026-03-02",
		"--order", qs.queue.Tickets[0].ID.String(),
	}, io.Discard)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if qs.reorders != 0 {
		t.Fatal("expected nothing sent to the server")
	}
}

func TestUnknownCommandAndMissingFlags(t *testing.T) {
	setEnv(t)
	if err := run(context.Background(), []string{"frobnicate"}, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
	if err := run(context.Background(), []string{"cancel"}, io.Discard); err == nil || !strings.Contains(err.Error(), "--id") {
		t.Fatalf("expected missing --id error, got %v", err)
	}
	if err := run(context.Background(), []string{"queue", "--help"}, io.Discard); err != nil {
		t.Fatalf("expected --help to succeed, got %v", err)
	}
}
