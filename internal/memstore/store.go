// Package memstore is an in-process implementation of every store port. It
// enforces the same conflict, version and cascade rules as the PostgreSQL
// repositories under a single lock, and backs local runs and service tests.
package memstore

import (
	"sync"
	"time"

	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

type queueKey struct {
	centerID uuid.UUID
	date     string
}

func keyOf(centerID uuid.UUID, date time.Time) queueKey {
	return queueKey{centerID: centerID, date: domain.FormatDate(domain.DateOf(date))}
}

type responseKey struct {
	intakeID uuid.UUID
	itemID   uuid.UUID
}

// Store holds all entities in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	technicians    map[uuid.UUID]domain.Technician
	workItems      map[uuid.UUID]domain.WorkItem
	assignments    map[uuid.UUID]domain.Assignment
	queueVersions  map[queueKey]int64
	tickets        map[uuid.UUID]domain.QueueTicket
	checklistItems map[uuid.UUID]domain.ChecklistItem
	intakes        map[uuid.UUID]domain.ServiceIntake
	responses      map[responseKey]domain.ChecklistResponse
	workOrders     map[uuid.UUID]domain.WorkOrder
	flagged        map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:            func() time.Time { return time.Now().UTC() },
		technicians:    make(map[uuid.UUID]domain.Technician),
		workItems:      make(map[uuid.UUID]domain.WorkItem),
		assignments:    make(map[uuid.UUID]domain.Assignment),
		queueVersions:  make(map[queueKey]int64),
		tickets:        make(map[uuid.UUID]domain.QueueTicket),
		checklistItems: make(map[uuid.UUID]domain.ChecklistItem),
		intakes:        make(map[uuid.UUID]domain.ServiceIntake),
		responses:      make(map[responseKey]domain.ChecklistResponse),
		workOrders:     make(map[uuid.UUID]domain.WorkOrder),
		flagged:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
