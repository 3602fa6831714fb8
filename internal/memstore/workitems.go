package memstore

import (
	"context"
	"sort"
	"time"

	"workshop_backend/internal/conflict"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/phone"

	"github.com/google/uuid"
)

// PutWorkItem inserts or replaces a work item as is.
func (s *Store) PutWorkItem(item domain.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Version == 0 {
		item.Version = 1
	}
	s.workItems[item.ID] = item
}

// CreateWorkItem registers a PENDING work item.
func (s *Store) CreateWorkItem(_ context.Context, in domain.NewWorkItem) (domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	item := domain.WorkItem{
		ID:              uuid.New(),
		Kind:            in.Kind,
		CenterID:        in.CenterID,
		ScheduledWindow: in.ScheduledWindow,
		Status:          domain.BookingPending,
		CustomerRef:     in.CustomerRef,
		VehicleRef:      in.VehicleRef,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.workItems[item.ID] = item
	return item, nil
}

// GetWorkItem loads one work item.
func (s *Store) GetWorkItem(_ context.Context, id uuid.UUID) (domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.workItems[id]
	if !ok {
		return domain.WorkItem{}, apperr.NotFound("work item not found")
	}
	return item, nil
}

// ListWorkItems returns the center's work items scheduled within [from, to).
func (s *Store) ListWorkItems(_ context.Context, centerID uuid.UUID, from, to time.Time) ([]domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.WorkItem, 0)
	for _, item := range s.workItems {
		if item.CenterID != centerID {
			continue
		}
		if conflict.Overlaps(item.ScheduledWindow.Start, item.ScheduledWindow.End, from, to) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledWindow.Start.Before(out[j].ScheduledWindow.Start)
	})
	return out, nil
}

// UpdateWorkItemStatus moves a work item from one status to another. It fails
// with a conflict when the item is no longer in from.
func (s *Store) UpdateWorkItemStatus(_ context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.workItems[id]
	if !ok {
		return domain.WorkItem{}, apperr.NotFound("work item not found")
	}
	if item.Status != from {
		return domain.WorkItem{}, apperr.Conflict("work item status changed").
			WithDetails(map[string]string{"currentStatus": string(item.Status)})
	}
	if _, err := workflow.Transition(workflow.Booking, from, to); err != nil {
		return domain.WorkItem{}, err
	}
	s.setWorkItemStatus(&item, to)
	return item, nil
}

// setWorkItemStatus writes the new status back. Callers hold s.mu.
func (s *Store) setWorkItemStatus(item *domain.WorkItem, to domain.BookingStatus) {
	item.Status = to
	item.Version++
	item.UpdatedAt = s.timestamp()
	s.workItems[item.ID] = *item
}

// FlagCustomer puts a customer reference on the flag list. Phone numbers
// are stored in E.164, matching how work items record them.
func (s *Store) FlagCustomer(customerRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged[phone.NormalizeE164(customerRef)] = struct{}{}
}

// IsFlagged reports whether the customer of a work item is flagged.
func (s *Store) IsFlagged(_ context.Context, workItemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.workItems[workItemID]
	if !ok {
		return false, apperr.NotFound("work item not found")
	}
	if item.CustomerRef == "" {
		return false, nil
	}
	_, flagged := s.flagged[item.CustomerRef]
	return flagged, nil
}
