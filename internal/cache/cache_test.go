package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"workshop_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type roster struct {
	Names []string `json:"names"`
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestFetchLoadsOnceThenServesFromCache(t *testing.T) {
	stores := map[string]Store{"memory": NewMemoryStore()}
	redisStore, _ := newRedisStore(t)
	stores["redis"] = redisStore

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			var loads int32
			load := func(context.Context) (roster, error) {
				atomic.AddInt32(&loads, 1)
				return roster{Names: []string{"ada", "linus"}}, nil
			}

			for i := 0; i < 3; i++ {
				got, err := Fetch(context.Background(), store, logger.Nop(), "roster:1", time.Minute, load)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got.Names) != 2 {
					t.Fatalf("unexpected value %+v", got)
				}
			}
			if loads != 1 {
				t.Fatalf("expected a single load, got %d", loads)
			}
		})
	}
}

func TestFetchPropagatesLoadErrorsWithoutCaching(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), store, logger.Nop(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after failed load, got %v", err)
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Delete(context.Context, ...string) error { return errors.New("down") }

func TestFetchFailsOpenWhenCacheIsDown(t *testing.T) {
	got, err := Fetch(context.Background(), brokenStore{}, logger.Nop(), "k", time.Minute, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("expected loader value despite broken cache, got %d %v", got, err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisStoreExpiresAndDeletes(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "b", []byte("2"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("test:a") {
		t.Fatal("expected prefixed key in redis")
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestProvisionalSettlesOnce(t *testing.T) {
	p := NewProvisional("optimistic")
	if _, state, _ := p.Snapshot(); state != StatePending {
		t.Fatalf("expected pending, got %s", state)
	}

	p.Confirm("confirmed")
	p.Fail(errors.New("late failure"))

	value, err := p.Wait(context.Background())
	if err != nil || value != "confirmed" {
		t.Fatalf("expected confirmed value, got %q %v", value, err)
	}
	if _, state, _ := p.Snapshot(); state != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", state)
	}
}

func TestProvisionalFailureKeepsOptimisticValue(t *testing.T) {
	p := NewProvisional(3)
	boom := errors.New("conflict")
	p.Fail(boom)

	value, state, err := p.Snapshot()
	if value != 3 || state != StateFailed || !errors.Is(err, boom) {
		t.Fatalf("unexpected snapshot %d %s %v", value, state, err)
	}
}

func TestProvisionalWaitHonoursContext(t *testing.T) {
	p := NewProvisional(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRefresherRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	r := NewRefresher("roster", 5*time.Millisecond, func(context.Context) error {
		if atomic.AddInt32(&calls, 1) >= 3 {
			cancel()
		}
		return nil
	}, logger.Nop())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancellation")
	}
	if atomic.LoadInt32(&calls) < 3 {
		t.Fatalf("expected at least 3 refreshes, got %d", calls)
	}
}
