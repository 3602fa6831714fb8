package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/queue/ranking"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// GetQueue returns the ordered queue of a center on a day. A day without
// tickets is an empty queue at version 0.
func (s *Store) GetQueue(_ context.Context, centerID uuid.UUID, date time.Time) (domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueLocked(centerID, date), nil
}

// GetTicket loads one ticket.
func (s *Store) GetTicket(_ context.Context, id uuid.UUID) (domain.QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return domain.QueueTicket{}, apperr.NotFound("queue ticket not found")
	}
	return t, nil
}

// AppendTicket adds a ticket at the tail of its queue and moves an ASSIGNED
// work item to IN_QUEUE.
func (s *Store) AppendTicket(_ context.Context, in domain.NewQueueTicket) (domain.Queue, domain.QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.workItems[in.WorkItemID]
	if !ok {
		return domain.Queue{}, domain.QueueTicket{}, apperr.NotFound("work item not found")
	}
	if item.CenterID != in.CenterID {
		return domain.Queue{}, domain.QueueTicket{}, apperr.Validation("work item belongs to another center",
			apperr.FieldError{Path: "workItemId", Message: "must belong to the queue's center"})
	}

	key := keyOf(in.CenterID, in.Date)
	current := s.ticketsOf(key)
	for _, t := range current {
		if t.WorkItemID == in.WorkItemID {
			return domain.Queue{}, domain.QueueTicket{}, apperr.Conflict("work item is already queued for this day")
		}
	}

	ticket := domain.QueueTicket{
		ID:             uuid.New(),
		CenterID:       in.CenterID,
		Date:           domain.DateOf(in.Date),
		Position:       ranking.NextPosition(current),
		WorkItemID:     in.WorkItemID,
		EstimatedStart: in.EstimatedStart,
		CreatedAt:      s.timestamp(),
	}
	s.tickets[ticket.ID] = ticket
	s.queueVersions[key]++

	if next, changed := workflow.OnQueued(item.Status); changed {
		s.setWorkItemStatus(&item, next)
	}
	return s.queueLocked(in.CenterID, in.Date), ticket, nil
}

// ReorderQueue replaces the ordering of a queue when expectedVersion is
// still current.
func (s *Store) ReorderQueue(_ context.Context, centerID uuid.UUID, date time.Time, expectedVersion int64, orderedIDs []uuid.UUID) (domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(centerID, date)
	if v := s.queueVersions[key]; v != expectedVersion {
		return domain.Queue{}, ranking.StaleVersion(v)
	}
	current := s.ticketsOf(key)
	if err := ranking.ValidateOrder(current, orderedIDs); err != nil {
		return domain.Queue{}, err
	}
	applied := ranking.Apply(current, orderedIDs)
	if !ranking.IsDense(applied) {
		return domain.Queue{}, ranking.ErrNotDense
	}
	for _, t := range applied {
		s.tickets[t.ID] = t
	}
	s.queueVersions[key]++
	return s.queueLocked(centerID, date), nil
}

// MarkNoShow flags a ticket as a no-show and re-ranks the rest of its queue.
// Marking an existing no-show again changes nothing.
func (s *Store) MarkNoShow(_ context.Context, ticketID uuid.UUID) (domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return domain.Queue{}, apperr.NotFound("queue ticket not found")
	}
	if t.NoShow {
		return s.queueLocked(t.CenterID, t.Date), nil
	}
	if t.AssignmentID != nil {
		return domain.Queue{}, apperr.Conflict("ticket was already converted to an assignment")
	}
	t.NoShow = true
	t.Position = 0
	s.tickets[t.ID] = t

	key := keyOf(t.CenterID, t.Date)
	for _, rt := range ranking.Rerank(s.ticketsOf(key)) {
		s.tickets[rt.ID] = rt
	}
	s.queueVersions[key]++
	return s.queueLocked(t.CenterID, t.Date), nil
}

// UpdateTicketETA sets or clears a ticket's estimated start and resets its
// overdue mark.
func (s *Store) UpdateTicketETA(_ context.Context, ticketID uuid.UUID, eta *time.Time) (domain.QueueTicket, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return domain.QueueTicket{}, 0, apperr.NotFound("queue ticket not found")
	}
	if t.NoShow {
		return domain.QueueTicket{}, 0, apperr.Conflict("ticket is a no-show")
	}
	if eta != nil {
		v := eta.UTC()
		eta = &v
	}
	t.EstimatedStart = eta
	t.OverdueAt = nil
	s.tickets[t.ID] = t

	key := keyOf(t.CenterID, t.Date)
	s.queueVersions[key]++
	return t, s.queueVersions[key], nil
}

// LinkAssignment records the assignment a ticket was converted into and
// copies the ticket position onto it. A ticket is linked at most once.
func (s *Store) LinkAssignment(_ context.Context, ticketID, assignmentID uuid.UUID) (domain.QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return domain.QueueTicket{}, apperr.NotFound("queue ticket not found")
	}
	if t.NoShow {
		return domain.QueueTicket{}, apperr.Conflict("ticket is a no-show")
	}
	if t.AssignmentID != nil {
		return domain.QueueTicket{}, apperr.Conflict("ticket is already converted")
	}
	a, ok := s.assignments[assignmentID]
	if !ok {
		return domain.QueueTicket{}, apperr.NotFound("assignment not found")
	}
	position := t.Position
	a.QueueNo = &position
	a.UpdatedAt = s.timestamp()
	s.assignments[a.ID] = a

	t.AssignmentID = &assignmentID
	s.tickets[t.ID] = t
	return t, nil
}

// MarkOverdue stamps an open ticket as overdue. It reports false when the
// ticket was converted, is a no-show or is already marked.
func (s *Store) MarkOverdue(_ context.Context, ticketID uuid.UUID, at time.Time) (domain.QueueTicket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return domain.QueueTicket{}, false, apperr.NotFound("queue ticket not found")
	}
	if t.NoShow || t.AssignmentID != nil || t.OverdueAt != nil {
		return t, false, nil
	}
	stamp := at.UTC()
	t.OverdueAt = &stamp
	s.tickets[t.ID] = t
	return t, true, nil
}

// ListOverdueCandidates returns open tickets with an ETA before etaBefore
// that are not yet marked overdue, oldest ETA first.
func (s *Store) ListOverdueCandidates(_ context.Context, etaBefore time.Time, limit int) ([]domain.QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.QueueTicket, 0)
	for _, t := range s.tickets {
		if t.NoShow || t.AssignmentID != nil || t.OverdueAt != nil || t.EstimatedStart == nil {
			continue
		}
		if t.EstimatedStart.Before(etaBefore) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.QueueTicket) int {
		if c := a.EstimatedStart.Compare(*b.EstimatedStart); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ticketsOf(key queueKey) []domain.QueueTicket {
	var out []domain.QueueTicket
	for _, t := range s.tickets {
		if keyOf(t.CenterID, t.Date) == key {
			out = append(out, t)
		}
	}
	ranking.Sort(out)
	return out
}

func (s *Store) queueLocked(centerID uuid.UUID, date time.Time) domain.Queue {
	key := keyOf(centerID, date)
	tickets := s.ticketsOf(key)
	if tickets == nil {
		tickets = []domain.QueueTicket{}
	}
	return domain.Queue{
		CenterID: centerID,
		Date:     domain.DateOf(date),
		Version:  s.queueVersions[key],
		Tickets:  tickets,
	}
}
