// Package service coordinates the daily queue of a service center: appending
// tickets, optimistic reordering, no-shows, ETAs and promotion of a ticket to
// an assignment.
package service

import (
	"context"
	"time"

	assignsvc "workshop_backend/internal/assignments/service"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultOverdueGrace = 15 * time.Minute

// Store persists queues. Every write that changes a queue bumps its version;
// ReorderQueue is rejected when expectedVersion is stale.
type Store interface {
	GetQueue(ctx context.Context, centerID uuid.UUID, date time.Time) (domain.Queue, error)
	GetTicket(ctx context.Context, id uuid.UUID) (domain.QueueTicket, error)
	AppendTicket(ctx context.Context, in domain.NewQueueTicket) (domain.Queue, domain.QueueTicket, error)
	ReorderQueue(ctx context.Context, centerID uuid.UUID, date time.Time, expectedVersion int64, orderedIDs []uuid.UUID) (domain.Queue, error)
	MarkNoShow(ctx context.Context, ticketID uuid.UUID) (domain.Queue, error)
	UpdateTicketETA(ctx context.Context, ticketID uuid.UUID, eta *time.Time) (domain.QueueTicket, int64, error)
	LinkAssignment(ctx context.Context, ticketID, assignmentID uuid.UUID) (domain.QueueTicket, error)
	MarkOverdue(ctx context.Context, ticketID uuid.UUID, at time.Time) (domain.QueueTicket, bool, error)
	ListOverdueCandidates(ctx context.Context, etaBefore time.Time, limit int) ([]domain.QueueTicket, error)
}

// Assigner is the slice of the assignment orchestrator a conversion needs.
type Assigner interface {
	Create(ctx context.Context, req assignsvc.CreateRequest) (assignsvc.Result, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.CancelResult, error)
	ActiveForWorkItem(ctx context.Context, workItemID uuid.UUID) (*domain.Assignment, error)
}

// WorkItemReader loads the work item behind a ticket.
type WorkItemReader interface {
	GetWorkItem(ctx context.Context, id uuid.UUID) (domain.WorkItem, error)
}

// FollowUpScheduler enqueues the overdue check for a ticket's ETA. It is
// optional and failures never block the ETA update.
type FollowUpScheduler interface {
	ScheduleOverdueCheck(ctx context.Context, ticketID uuid.UUID, eta time.Time, runAt time.Time) error
}

// AddRequest asks for a work item to join a day's queue.
type AddRequest struct {
	CenterID       uuid.UUID
	Date           time.Time
	WorkItemID     uuid.UUID
	EstimatedStart *time.Time
}

// ConvertResult is the assignment a ticket was promoted to. Created is false
// when the ticket had already been converted or was linked to an existing
// assignment.
type ConvertResult struct {
	Ticket     domain.QueueTicket `json:"ticket"`
	Assignment domain.Assignment  `json:"assignment"`
	Created    bool               `json:"created"`
}

// Coordinator owns queue mutations.
type Coordinator struct {
	store     Store
	assigner  Assigner
	workItems WorkItemReader
	followUps FollowUpScheduler
	bus       events.Bus
	log       *logger.Logger
	grace     time.Duration
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFollowUps installs the scheduler used for overdue checks.
func WithFollowUps(f FollowUpScheduler) Option {
	return func(c *Coordinator) { c.followUps = f }
}

// WithOverdueGrace sets how long after its ETA a ticket becomes overdue.
func WithOverdueGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a queue coordinator.
func New(store Store, assigner Assigner, workItems WorkItemReader, bus events.Bus, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		assigner:  assigner,
		workItems: workItems,
		bus:       bus,
		log:       log,
		grace:     defaultOverdueGrace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a day's queue with its current version.
func (c *Coordinator) Get(ctx context.Context, centerID uuid.UUID, date time.Time) (domain.Queue, error) {
	return c.store.GetQueue(ctx, centerID, domain.DateOf(date))
}

// GetTicket loads one ticket.
func (c *Coordinator) GetTicket(ctx context.Context, id uuid.UUID) (domain.QueueTicket, error) {
	return c.store.GetTicket(ctx, id)
}

// Add appends a ticket at the tail of the queue.
func (c *Coordinator) Add(ctx context.Context, req AddRequest) (domain.Queue, domain.QueueTicket, error) {
	var fields []apperr.FieldError
	if req.CenterID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "centerId", Message: "is required"})
	}
	if req.WorkItemID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "workItemId", Message: "is required"})
	}
	if req.Date.IsZero() {
		fields = append(fields, apperr.FieldError{Path: "date", Message: "is required"})
	}
	if len(fields) > 0 {
		return domain.Queue{}, domain.QueueTicket{}, apperr.Validation("invalid queue ticket", fields...)
	}

	queue, ticket, err := c.store.AppendTicket(ctx, domain.NewQueueTicket{
		CenterID:       req.CenterID,
		Date:           domain.DateOf(req.Date),
		WorkItemID:     req.WorkItemID,
		EstimatedStart: utcPtr(req.EstimatedStart),
	})
	if err != nil {
		return domain.Queue{}, domain.QueueTicket{}, err
	}

	c.publishChanged(ctx, queue, "ticket_added")
	if ticket.EstimatedStart != nil {
		c.scheduleFollowUp(ctx, ticket.ID, *ticket.EstimatedStart)
	}
	return queue, ticket, nil
}

// Reorder replaces the whole ranking. orderedIDs must list every ranked
// ticket exactly once, and expectedVersion must match the version the
// caller read; a stale version is a conflict and nothing is merged.
func (c *Coordinator) Reorder(ctx context.Context, centerID uuid.UUID, date time.Time, expectedVersion int64, orderedIDs []uuid.UUID) (domain.Queue, error) {
	if expectedVersion < 0 {
		return domain.Queue{}, apperr.Validation("invalid version",
			apperr.FieldError{Path: "expectedVersion", Message: "must not be negative"})
	}

	queue, err := c.store.ReorderQueue(ctx, centerID, domain.DateOf(date), expectedVersion, orderedIDs)
	if err != nil {
		return domain.Queue{}, err
	}
	c.publishChanged(ctx, queue, "reordered")
	return queue, nil
}

// MarkNoShow flags a ticket. The ticket stays in the queue for the record
// and the remaining tickets close the gap.
func (c *Coordinator) MarkNoShow(ctx context.Context, ticketID uuid.UUID) (domain.Queue, error) {
	queue, err := c.store.MarkNoShow(ctx, ticketID)
	if err != nil {
		return domain.Queue{}, err
	}
	c.publishChanged(ctx, queue, "no_show")
	return queue, nil
}

// UpdateETA sets or clears a ticket's estimated start. A new ETA schedules
// an overdue check at ETA plus the grace period.
func (c *Coordinator) UpdateETA(ctx context.Context, ticketID uuid.UUID, eta *time.Time) (domain.QueueTicket, error) {
	ticket, version, err := c.store.UpdateTicketETA(ctx, ticketID, utcPtr(eta))
	if err != nil {
		return domain.QueueTicket{}, err
	}

	c.bus.Publish(ctx, events.QueueChanged{
		BaseEvent: events.NewBaseEvent(),
		CenterID:  ticket.CenterID,
		Date:      domain.FormatDate(ticket.Date),
		Version:   version,
		Reason:    "eta_updated",
	})
	if ticket.EstimatedStart != nil {
		c.scheduleFollowUp(ctx, ticket.ID, *ticket.EstimatedStart)
	}
	return ticket, nil
}

// ConvertToAssignment promotes a ticket to an assignment. Repeating the call
// on a converted ticket returns the linked assignment unchanged. When the
// work item already has a blocking assignment the ticket is linked to it;
// otherwise technicianID is required and a new assignment is created over
// the work item's scheduled window.
func (c *Coordinator) ConvertToAssignment(ctx context.Context, ticketID uuid.UUID, technicianID *uuid.UUID) (ConvertResult, error) {
	ticket, err := c.store.GetTicket(ctx, ticketID)
	if err != nil {
		return ConvertResult{}, err
	}
	if ticket.AssignmentID != nil {
		return c.alreadyConverted(ctx, ticket)
	}
	if ticket.NoShow {
		return ConvertResult{}, apperr.Conflict("no-show tickets cannot be converted")
	}

	existing, err := c.assigner.ActiveForWorkItem(ctx, ticket.WorkItemID)
	if err != nil {
		return ConvertResult{}, err
	}
	if existing != nil {
		return c.link(ctx, ticket, *existing, false)
	}

	if technicianID == nil || *technicianID == uuid.Nil {
		return ConvertResult{}, apperr.Validation("a technician is required to convert this ticket",
			apperr.FieldError{Path: "technicianId", Message: "is required"})
	}
	item, err := c.workItems.GetWorkItem(ctx, ticket.WorkItemID)
	if err != nil {
		return ConvertResult{}, err
	}

	created, err := c.assigner.Create(ctx, assignsvc.CreateRequest{
		WorkItemID:   &item.ID,
		TechnicianID: *technicianID,
		CenterID:     ticket.CenterID,
		Window:       item.ScheduledWindow,
	})
	if err != nil {
		return ConvertResult{}, err
	}
	return c.link(ctx, ticket, created.Assignment, true)
}

// CheckOverdue runs when a ticket's follow-up fires. The check is skipped
// when the ETA moved since it was scheduled or the grace period has not yet
// elapsed. It reports whether the ticket was marked overdue.
func (c *Coordinator) CheckOverdue(ctx context.Context, ticketID uuid.UUID, scheduledETA time.Time) (bool, error) {
	ticket, err := c.store.GetTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.EstimatedStart == nil || !ticket.EstimatedStart.Equal(scheduledETA) {
		return false, nil
	}
	now := c.now()
	if now.Before(ticket.EstimatedStart.Add(c.grace)) {
		return false, nil
	}

	marked, ok, err := c.store.MarkOverdue(ctx, ticketID, now)
	if err != nil || !ok {
		return false, err
	}

	c.bus.Publish(ctx, events.QueueTicketOverdue{
		BaseEvent:    events.NewBaseEvent(),
		TicketID:     marked.ID,
		CenterID:     marked.CenterID,
		EstimatedUTC: *marked.EstimatedStart,
	})
	c.log.WithContext(ctx).Info("queue ticket overdue", "ticketId", marked.ID, "estimatedStart", marked.EstimatedStart)
	return true, nil
}

// SweepOverdue marks every open ticket whose ETA plus grace has passed. It
// catches follow-ups that were never delivered.
func (c *Coordinator) SweepOverdue(ctx context.Context, limit int) (int, error) {
	candidates, err := c.store.ListOverdueCandidates(ctx, c.now().Add(-c.grace), limit)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, ticket := range candidates {
		ok, err := c.CheckOverdue(ctx, ticket.ID, *ticket.EstimatedStart)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return marked, err
		}
		if ok {
			marked++
		}
	}
	return marked, nil
}

func (c *Coordinator) link(ctx context.Context, ticket domain.QueueTicket, assignment domain.Assignment, created bool) (ConvertResult, error) {
	linked, err := c.store.LinkAssignment(ctx, ticket.ID, assignment.ID)
	if err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			return ConvertResult{}, err
		}
		// Lost a race with another conversion of the same ticket.
		if created {
			if _, cancelErr := c.assigner.Cancel(ctx, assignment.ID); cancelErr != nil {
				c.log.WithContext(ctx).Warn("failed to cancel assignment of a lost conversion",
					"assignmentId", assignment.ID, "error", cancelErr)
			}
		}
		current, readErr := c.store.GetTicket(ctx, ticket.ID)
		if readErr != nil || current.AssignmentID == nil {
			return ConvertResult{}, err
		}
		return c.alreadyConverted(ctx, current)
	}

	c.bus.Publish(ctx, events.QueueTicketConverted{
		BaseEvent:    events.NewBaseEvent(),
		TicketID:     linked.ID,
		AssignmentID: assignment.ID,
		CenterID:     linked.CenterID,
	})
	return ConvertResult{Ticket: linked, Assignment: assignment, Created: created}, nil
}

func (c *Coordinator) alreadyConverted(ctx context.Context, ticket domain.QueueTicket) (ConvertResult, error) {
	assignment, err := c.assigner.Get(ctx, *ticket.AssignmentID)
	if err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{Ticket: ticket, Assignment: assignment}, nil
}

func (c *Coordinator) scheduleFollowUp(ctx context.Context, ticketID uuid.UUID, eta time.Time) {
	if c.followUps == nil {
		return
	}
	if err := c.followUps.ScheduleOverdueCheck(ctx, ticketID, eta, eta.Add(c.grace)); err != nil {
		c.log.WithContext(ctx).Degraded("queue_overdue_scheduler", err)
	}
}

func (c *Coordinator) publishChanged(ctx context.Context, queue domain.Queue, reason string) {
	c.bus.Publish(ctx, events.QueueChanged{
		BaseEvent: events.NewBaseEvent(),
		CenterID:  queue.CenterID,
		Date:      domain.FormatDate(queue.Date),
		Version:   queue.Version,
		Reason:    reason,
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
