package memstore

import (
	"context"
	"sort"
	"time"

	"workshop_backend/internal/conflict"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// CreateAssignment stores an ASSIGNED assignment after re-running the
// conflict check and applies the work item cascade.
func (s *Store) CreateAssignment(_ context.Context, in domain.NewAssignment) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tech, ok := s.technicians[in.TechnicianID]
	if !ok {
		return domain.Assignment{}, apperr.NotFound("technician not found")
	}
	if !tech.IsActive {
		return domain.Assignment{}, apperr.Validation("technician is inactive",
			apperr.FieldError{Path: "technicianId", Message: "must be an active technician"})
	}

	var (
		item     domain.WorkItem
		cascade  bool
		itemNext domain.BookingStatus
	)
	if in.WorkItemID != nil {
		item, ok = s.workItems[*in.WorkItemID]
		if !ok {
			return domain.Assignment{}, apperr.NotFound("work item not found")
		}
		if item.CenterID != in.CenterID {
			return domain.Assignment{}, apperr.Validation("center does not match the work item",
				apperr.FieldError{Path: "centerId", Message: "must equal the work item's center"})
		}
		var err error
		itemNext, cascade, err = workflow.OnAssignmentCreated(item.Status)
		if err != nil {
			return domain.Assignment{}, err
		}
	}

	if clashes := conflict.Conflicts(in.TechnicianID, in.PlannedWindow, s.technicianAssignments(in.TechnicianID)); len(clashes) > 0 {
		return domain.Assignment{}, conflict.Error(in.TechnicianID, in.CenterID, clashes)
	}

	now := s.timestamp()
	a := domain.Assignment{
		ID:            uuid.New(),
		WorkItemID:    in.WorkItemID,
		TechnicianID:  in.TechnicianID,
		CenterID:      in.CenterID,
		PlannedWindow: in.PlannedWindow,
		Status:        domain.AssignmentAssigned,
		Note:          in.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.assignments[a.ID] = a
	if cascade {
		s.setWorkItemStatus(&item, itemNext)
	}
	return a, nil
}

// GetAssignment loads one assignment.
func (s *Store) GetAssignment(_ context.Context, id uuid.UUID) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, apperr.NotFound("assignment not found")
	}
	return a, nil
}

// CancelAssignment marks an assignment CANCELLED. When its work item is left
// without blocking assignments the cleared cascade runs.
func (s *Store) CancelAssignment(_ context.Context, id uuid.UUID) (domain.CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return domain.CancelResult{}, apperr.NotFound("assignment not found")
	}
	if _, err := workflow.Transition(workflow.Assignment, a.Status, domain.AssignmentCancelled); err != nil {
		return domain.CancelResult{}, err
	}
	a.Status = domain.AssignmentCancelled
	a.UpdatedAt = s.timestamp()
	s.assignments[a.ID] = a

	res := domain.CancelResult{Assignment: a}
	if a.WorkItemID == nil {
		return res, nil
	}
	for _, other := range s.assignments {
		if other.WorkItemID != nil && *other.WorkItemID == *a.WorkItemID && other.Status.Blocking() {
			res.HasActiveAssignments = true
			break
		}
	}
	if !res.HasActiveAssignments {
		if item, ok := s.workItems[*a.WorkItemID]; ok {
			if next, changed := workflow.OnAssignmentsCleared(item.Status); changed {
				s.setWorkItemStatus(&item, next)
			}
		}
	}
	return res, nil
}

// UpdateAssignmentStatus moves an assignment from one status to another.
func (s *Store) UpdateAssignmentStatus(_ context.Context, id uuid.UUID, from, to domain.AssignmentStatus) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, apperr.NotFound("assignment not found")
	}
	if a.Status != from {
		return domain.Assignment{}, apperr.Conflict("assignment status changed").
			WithDetails(map[string]string{"currentStatus": string(a.Status)})
	}
	if _, err := workflow.Transition(workflow.Assignment, from, to); err != nil {
		return domain.Assignment{}, err
	}
	a.Status = to
	a.UpdatedAt = s.timestamp()
	s.assignments[a.ID] = a
	return a, nil
}

// ListTechnicianAssignments returns the technician's assignments overlapping
// [from, to) in any status.
func (s *Store) ListTechnicianAssignments(_ context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.technicians[technicianID]; !ok {
		return nil, apperr.NotFound("technician not found")
	}
	out := make([]domain.Assignment, 0)
	for _, a := range s.technicianAssignments(technicianID) {
		if conflict.Overlaps(a.PlannedWindow.Start, a.PlannedWindow.End, from, to) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

// ListWorkItemAssignments returns every assignment of a work item.
func (s *Store) ListWorkItemAssignments(_ context.Context, workItemID uuid.UUID) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workItems[workItemID]; !ok {
		return nil, apperr.NotFound("work item not found")
	}
	out := make([]domain.Assignment, 0)
	for _, a := range s.assignments {
		if a.WorkItemID != nil && *a.WorkItemID == workItemID {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

// ListBlockingAssignments returns the blocking assignments of every
// technician overlapping [from, to).
func (s *Store) ListBlockingAssignments(_ context.Context, from, to time.Time) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Assignment, 0)
	for _, a := range s.assignments {
		if a.Status.Blocking() && conflict.Overlaps(a.PlannedWindow.Start, a.PlannedWindow.End, from, to) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) technicianAssignments(technicianID uuid.UUID) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.TechnicianID == technicianID {
			out = append(out, a)
		}
	}
	return out
}

func sortByStart(list []domain.Assignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].PlannedWindow.Start.Equal(list[j].PlannedWindow.Start) {
			return list[i].PlannedWindow.Start.Before(list[j].PlannedWindow.Start)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}
