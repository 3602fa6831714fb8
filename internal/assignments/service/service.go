// Package service orchestrates assignment creation, cancellation and
// reassignment. Work item status cascades are applied by the Store inside the
// same transaction as the assignment write, so the orchestrator never issues
// a second status change of its own.
package service

import (
	"context"
	"time"

	"workshop_backend/internal/conflict"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const batchConcurrency = 4

// Store persists assignments. Implementations re-run the conflict check
// under a per-technician lock and apply the work item cascades of
// workflow.OnAssignmentCreated and workflow.OnAssignmentsCleared atomically.
type Store interface {
	CreateAssignment(ctx context.Context, in domain.NewAssignment) (domain.Assignment, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	CancelAssignment(ctx context.Context, id uuid.UUID) (domain.CancelResult, error)
	UpdateAssignmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AssignmentStatus) (domain.Assignment, error)
	ListTechnicianAssignments(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Assignment, error)
	ListWorkItemAssignments(ctx context.Context, workItemID uuid.UUID) ([]domain.Assignment, error)
}

// RiskChecker flags work items whose customer needs extra attention. It is
// optional and never blocks an assignment.
type RiskChecker interface {
	IsFlagged(ctx context.Context, workItemID uuid.UUID) (bool, error)
}

// CreateRequest asks for one technician to be assigned.
type CreateRequest struct {
	WorkItemID   *uuid.UUID
	TechnicianID uuid.UUID
	CenterID     uuid.UUID
	Window       domain.Window
	Note         *string
}

// Result is a created assignment together with its advisory risk flag.
type Result struct {
	Assignment  domain.Assignment `json:"assignment"`
	RiskFlagged bool              `json:"riskFlagged"`
}

// BatchResult is the outcome of one technician in a CreateMany call.
type BatchResult struct {
	TechnicianID uuid.UUID
	Result       *Result
	Err          error
}

// Orchestrator is the only writer of assignments.
type Orchestrator struct {
	store Store
	risk  RiskChecker
	bus   events.Bus
	log   *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRiskChecker installs the optional customer risk collaborator.
func WithRiskChecker(rc RiskChecker) Option {
	return func(o *Orchestrator) { o.risk = rc }
}

// New creates an orchestrator.
func New(store Store, bus events.Bus, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store, bus: bus, log: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create assigns a technician to a window. Input is validated locally and an
// advisory conflict check runs before the store is asked; the store's own
// check is authoritative.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (Result, error) {
	if err := validateCreate(req); err != nil {
		return Result{}, err
	}
	window := domain.Window{Start: req.Window.Start.UTC(), End: req.Window.End.UTC()}

	if err := o.precheck(ctx, req.TechnicianID, req.CenterID, window); err != nil {
		return Result{}, err
	}

	flagged := o.riskFlag(ctx, req.WorkItemID)

	created, err := o.store.CreateAssignment(ctx, domain.NewAssignment{
		WorkItemID:    req.WorkItemID,
		TechnicianID:  req.TechnicianID,
		CenterID:      req.CenterID,
		PlannedWindow: window,
		Note:          req.Note,
	})
	if err != nil {
		return Result{}, err
	}

	o.bus.Publish(ctx, events.AssignmentCreated{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: created.ID,
		WorkItemID:   created.WorkItemID,
		TechnicianID: created.TechnicianID,
		CenterID:     created.CenterID,
		RiskFlagged:  flagged,
	})

	return Result{Assignment: created, RiskFlagged: flagged}, nil
}

// CreateMany assigns several technicians to the same work item window. Each
// create is independent: a failure never undoes another technician's
// success. Results come back in request order.
func (o *Orchestrator) CreateMany(ctx context.Context, workItemID uuid.UUID, centerID uuid.UUID, window domain.Window, technicianIDs []uuid.UUID) ([]BatchResult, error) {
	if len(technicianIDs) == 0 {
		return nil, apperr.Validation("at least one technician is required",
			apperr.FieldError{Path: "technicianIds", Message: "must not be empty"})
	}

	results := make([]BatchResult, len(technicianIDs))
	seen := make(map[uuid.UUID]bool, len(technicianIDs))

	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, techID := range technicianIDs {
		results[i].TechnicianID = techID
		if seen[techID] {
			results[i].Err = apperr.Validation("technician listed more than once",
				apperr.FieldError{Path: "technicianIds", Message: "duplicate " + techID.String()})
			continue
		}
		seen[techID] = true

		g.Go(func() error {
			res, err := o.Create(ctx, CreateRequest{
				WorkItemID:   &workItemID,
				TechnicianID: techID,
				CenterID:     centerID,
				Window:       window,
			})
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result = &res
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// Cancel soft-deletes an assignment. When it was the work item's last
// blocking assignment the store moves the item back to ready-for-assignment.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (domain.CancelResult, error) {
	current, err := o.store.GetAssignment(ctx, id)
	if err != nil {
		return domain.CancelResult{}, err
	}
	if _, err := workflow.Transition(workflow.Assignment, current.Status, domain.AssignmentCancelled); err != nil {
		return domain.CancelResult{}, err
	}

	res, err := o.store.CancelAssignment(ctx, id)
	if err != nil {
		return domain.CancelResult{}, err
	}

	o.bus.Publish(ctx, events.AssignmentCancelled{
		BaseEvent:            events.NewBaseEvent(),
		AssignmentID:         res.Assignment.ID,
		WorkItemID:           res.Assignment.WorkItemID,
		CenterID:             res.Assignment.CenterID,
		HasActiveAssignments: res.HasActiveAssignments,
	})
	return res, nil
}

// Reassign cancels an assignment and creates a fresh one for newTechnicianID
// over the same window and center. The two steps are not atomic: if the
// create fails the work item is left unassigned, a
// WorkItemReadyForAssignment event is published and the error is returned.
func (o *Orchestrator) Reassign(ctx context.Context, id uuid.UUID, newTechnicianID uuid.UUID) (Result, error) {
	if newTechnicianID == uuid.Nil {
		return Result{}, apperr.Validation("technician is required",
			apperr.FieldError{Path: "technicianId", Message: "is required"})
	}

	old, err := o.store.GetAssignment(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if old.TechnicianID == newTechnicianID {
		return Result{}, apperr.Validation("assignment already belongs to this technician",
			apperr.FieldError{Path: "technicianId", Message: "must differ from the current technician"})
	}

	if _, err := o.Cancel(ctx, id); err != nil {
		return Result{}, err
	}

	res, err := o.Create(ctx, CreateRequest{
		WorkItemID:   old.WorkItemID,
		TechnicianID: newTechnicianID,
		CenterID:     old.CenterID,
		Window:       old.PlannedWindow,
		Note:         old.Note,
	})
	if err != nil {
		if old.WorkItemID != nil {
			o.bus.Publish(ctx, events.WorkItemReadyForAssignment{
				BaseEvent:            events.NewBaseEvent(),
				WorkItemID:           *old.WorkItemID,
				CenterID:             old.CenterID,
				PreviousAssignmentID: old.ID,
				Reason:               apperr.GetKind(err).String(),
			})
		}
		o.log.WithContext(ctx).Warn("reassignment left work item unassigned",
			"assignmentId", old.ID, "technicianId", newTechnicianID, "error", err)
		return Result{}, err
	}
	return res, nil
}

// Transition advances an assignment along its table. Cancellation goes
// through Cancel so that the work item cascade runs.
func (o *Orchestrator) Transition(ctx context.Context, id uuid.UUID, target domain.AssignmentStatus) (domain.Assignment, error) {
	if target == domain.AssignmentCancelled {
		return domain.Assignment{}, apperr.Validation("use cancel to cancel an assignment",
			apperr.FieldError{Path: "status", Message: "must not be CANCELLED"})
	}
	if !workflow.Known(workflow.Assignment, target) {
		return domain.Assignment{}, apperr.Validation("unknown assignment status",
			apperr.FieldError{Path: "status", Message: "must be one of: ASSIGNED ACTIVE COMPLETED"})
	}

	current, err := o.store.GetAssignment(ctx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if _, err := workflow.Transition(workflow.Assignment, current.Status, target); err != nil {
		return domain.Assignment{}, err
	}

	updated, err := o.store.UpdateAssignmentStatus(ctx, id, current.Status, target)
	if err != nil {
		return domain.Assignment{}, err
	}

	o.bus.Publish(ctx, events.AssignmentStatusChanged{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: updated.ID,
		CenterID:     updated.CenterID,
		From:         string(current.Status),
		To:           string(updated.Status),
	})
	return updated, nil
}

// Get loads one assignment.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return o.store.GetAssignment(ctx, id)
}

// ListForTechnician lists a technician's assignments overlapping [from, to).
func (o *Orchestrator) ListForTechnician(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Assignment, error) {
	if !to.After(from) {
		return nil, apperr.Validation("invalid range", apperr.FieldError{Path: "to", Message: "must be after from"})
	}
	return o.store.ListTechnicianAssignments(ctx, technicianID, from, to)
}

// ListForWorkItem lists every assignment of a work item.
func (o *Orchestrator) ListForWorkItem(ctx context.Context, workItemID uuid.UUID) ([]domain.Assignment, error) {
	return o.store.ListWorkItemAssignments(ctx, workItemID)
}

// ActiveForWorkItem returns the work item's first blocking assignment, if any.
func (o *Orchestrator) ActiveForWorkItem(ctx context.Context, workItemID uuid.UUID) (*domain.Assignment, error) {
	all, err := o.store.ListWorkItemAssignments(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Status.Blocking() {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (o *Orchestrator) precheck(ctx context.Context, technicianID, centerID uuid.UUID, window domain.Window) error {
	existing, err := o.store.ListTechnicianAssignments(ctx, technicianID, window.Start, window.End)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		o.log.WithContext(ctx).Degraded("assignment precheck", err)
		return nil
	}
	if clashes := conflict.Conflicts(technicianID, window, existing); len(clashes) > 0 {
		return conflict.Error(technicianID, centerID, clashes)
	}
	return nil
}

func (o *Orchestrator) riskFlag(ctx context.Context, workItemID *uuid.UUID) bool {
	if o.risk == nil || workItemID == nil {
		return false
	}
	flagged, err := o.risk.IsFlagged(ctx, *workItemID)
	if err != nil {
		o.log.WithContext(ctx).Degraded("risk checker", err)
		return false
	}
	return flagged
}

func validateCreate(req CreateRequest) error {
	var fields []apperr.FieldError
	if req.TechnicianID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "technicianId", Message: "is required"})
	}
	if req.CenterID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "centerId", Message: "is required"})
	}
	if req.WorkItemID == nil || *req.WorkItemID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "bookingId", Message: "is required"})
	}
	if !req.Window.Valid() {
		fields = append(fields, apperr.FieldError{Path: "plannedEndUtc", Message: "must be after plannedStartUtc"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid assignment request", fields...)
	}
	return nil
}
